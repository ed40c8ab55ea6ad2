// Package memstore is the in-memory implementation of storage.Store:
// a content-addressed, deduplicating block and tree store with a
// memory quota, LRU eviction, and an optional bounded event log.
package memstore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/mem"
	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/merkle"
	"github.com/loreweave/loreweave/pkg/model"
	"github.com/loreweave/loreweave/pkg/storage"
)

const (
	// DefaultMemoryLimit applies when the host's memory cannot be
	// probed.
	DefaultMemoryLimit = 512 * 1024 * 1024

	// defaultCleanupThreshold / defaultCleanupTarget form the eviction
	// hysteresis: maintenance starts above 90% of the limit and evicts
	// down to 70%, so the store doesn't thrash at the boundary.
	defaultCleanupThreshold = 0.9
	defaultCleanupTarget    = 0.7

	defaultMaxEvents = 1000

	// blockOverhead approximates per-block bookkeeping cost beyond the
	// content bytes. Accounting is an estimate, not an allocator audit.
	blockOverhead = 128
	// nodeOverhead approximates one Merkle node's footprint.
	nodeOverhead = 160
)

// Config configures a Store. The zero value gives a 512 MiB limit (or
// a quarter of system memory, whichever is smaller), eviction on, and
// event recording off.
type Config struct {
	// MemoryLimit bounds the estimated bytes held. Ignored when
	// Unlimited is set.
	MemoryLimit uint64
	// Unlimited disables the quota entirely.
	Unlimited bool
	// DisableEviction makes quota overruns hard failures instead of
	// triggering LRU eviction.
	DisableEviction bool
	// EnableEvents turns on the bounded event log.
	EnableEvents bool
	// MaxEvents caps the event log; 0 means 1000.
	MaxEvents int
	// CleanupThreshold and CleanupTarget override the eviction
	// hysteresis; 0 means 0.9 and 0.7.
	CleanupThreshold float64
	CleanupTarget    float64

	Logger *logrus.Logger
}

// DefaultConfig probes system memory and sizes the limit at a quarter
// of physical RAM, capped at 512 MiB.
func DefaultConfig() Config {
	limit := uint64(DefaultMemoryLimit)
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		if quarter := vm.Total / 4; quarter < limit {
			limit = quarter
		}
	}
	return Config{MemoryLimit: limit}
}

type blockEntry struct {
	block model.Block
	size  uint64
}

// Store is an in-memory content-addressed store. All methods are safe
// for concurrent use.
type Store struct {
	cfg Config
	log *logrus.Logger

	mu     sync.RWMutex
	blocks map[hashing.Digest]blockEntry

	treeMu sync.RWMutex
	trees  map[string]*merkle.Tree

	lruMu      sync.Mutex
	lastAccess map[hashing.Digest]int64

	eventMu  sync.Mutex
	events   []storage.Event
	eventPos int

	closed atomic.Bool

	memoryUsage  atomic.Uint64
	largestBlock atomic.Uint64
	totalStored  atomic.Uint64
	totalEvicted atomic.Uint64
	dedupHits    atomic.Uint64
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
}

// New creates a store from the config.
func New(cfg Config) *Store {
	if cfg.MemoryLimit == 0 && !cfg.Unlimited {
		cfg.MemoryLimit = DefaultConfig().MemoryLimit
	}
	if cfg.CleanupThreshold <= 0 || cfg.CleanupThreshold > 1 {
		cfg.CleanupThreshold = defaultCleanupThreshold
	}
	if cfg.CleanupTarget <= 0 || cfg.CleanupTarget >= cfg.CleanupThreshold {
		cfg.CleanupTarget = defaultCleanupTarget
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}
	return &Store{
		cfg:        cfg,
		log:        cfg.Logger,
		blocks:     make(map[hashing.Digest]blockEntry),
		trees:      make(map[string]*merkle.Tree),
		lastAccess: make(map[hashing.Digest]int64),
	}
}

func blockSize(b model.Block) uint64 {
	meta := len(b.Metadata.HeadingID) + len(b.Metadata.CodeLanguage) +
		len(b.Metadata.CalloutKind) + len(b.Metadata.CalloutTitle)
	for _, h := range b.Metadata.TableHeaders {
		meta += len(h)
	}
	return uint64(len(b.Content)+meta) + blockOverhead
}

func treeSize(t *merkle.Tree) uint64 {
	return uint64(len(t.Nodes))*nodeOverhead + uint64(len(t.Leaves))*hashing.DigestLength
}

// StoreBlock stores the block under its digest. A digest already
// present is a dedup hit: the call succeeds without mutating the
// stored copy and refreshes its access time.
func (s *Store) StoreBlock(digest hashing.Digest, block model.Block) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.mu.Lock()
	if _, exists := s.blocks[digest]; exists {
		s.mu.Unlock()
		s.dedupHits.Add(1)
		s.touch(digest)
		return nil
	}

	size := blockSize(block)
	if !s.cfg.Unlimited {
		used := s.memoryUsage.Load()
		if used+size > s.cfg.MemoryLimit {
			if s.cfg.DisableEviction {
				s.mu.Unlock()
				s.recordEvent(storage.Event{Kind: storage.EventQuotaExceeded, Digest: digest})
				return &storage.QuotaExceededError{Needed: size, Used: used, Limit: s.cfg.MemoryLimit}
			}
			target := s.cfg.MemoryLimit - size
			if size > s.cfg.MemoryLimit {
				target = 0
			}
			s.evictLocked(target)
			if s.memoryUsage.Load()+size > s.cfg.MemoryLimit {
				used = s.memoryUsage.Load()
				s.mu.Unlock()
				s.recordEvent(storage.Event{Kind: storage.EventQuotaExceeded, Digest: digest})
				return &storage.QuotaExceededError{Needed: size, Used: used, Limit: s.cfg.MemoryLimit}
			}
		}
	}

	s.blocks[digest] = blockEntry{block: block, size: size}
	s.mu.Unlock()

	s.memoryUsage.Add(size)
	s.totalStored.Add(1)
	for {
		largest := s.largestBlock.Load()
		if size <= largest || s.largestBlock.CompareAndSwap(largest, size) {
			break
		}
	}
	s.touch(digest)
	s.recordEvent(storage.Event{Kind: storage.EventBlockStored, Digest: digest})
	return nil
}

// GetBlock retrieves a block by digest, refreshing its LRU position on
// a hit. Absence is reported via ok, not an error.
func (s *Store) GetBlock(digest hashing.Digest) (model.Block, bool, error) {
	if s.closed.Load() {
		return model.Block{}, false, storage.ErrClosed
	}

	s.mu.RLock()
	entry, ok := s.blocks[digest]
	s.mu.RUnlock()

	if !ok {
		s.cacheMisses.Add(1)
		return model.Block{}, false, nil
	}
	s.cacheHits.Add(1)
	s.touch(digest)
	s.recordEvent(storage.Event{Kind: storage.EventBlockRetrieved, Digest: digest})
	return entry.block, true, nil
}

// HasBlock reports presence without refreshing access tracking, so
// probes don't distort eviction order.
func (s *Store) HasBlock(digest hashing.Digest) (bool, error) {
	if s.closed.Load() {
		return false, storage.ErrClosed
	}
	s.mu.RLock()
	_, ok := s.blocks[digest]
	s.mu.RUnlock()
	return ok, nil
}

// RemoveBlock deletes a block; removing an absent digest is a no-op.
func (s *Store) RemoveBlock(digest hashing.Digest) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.mu.Lock()
	entry, ok := s.blocks[digest]
	if ok {
		delete(s.blocks, digest)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	s.memoryUsage.Add(^(entry.size - 1))
	s.forget(digest)
	s.recordEvent(storage.Event{Kind: storage.EventBlockRemoved, Digest: digest})
	return nil
}

// StoreTree stores or replaces the tree for id.
func (s *Store) StoreTree(id string, tree *merkle.Tree) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	size := treeSize(tree)
	s.treeMu.Lock()
	if old, ok := s.trees[id]; ok {
		s.memoryUsage.Add(^(treeSize(old) - 1))
	}
	s.trees[id] = tree
	s.treeMu.Unlock()

	s.memoryUsage.Add(size)
	s.recordEvent(storage.Event{Kind: storage.EventTreeStored, TreeID: id})
	return nil
}

// GetTree retrieves the tree for id.
func (s *Store) GetTree(id string) (*merkle.Tree, bool, error) {
	if s.closed.Load() {
		return nil, false, storage.ErrClosed
	}
	s.treeMu.RLock()
	t, ok := s.trees[id]
	s.treeMu.RUnlock()
	return t, ok, nil
}

// RemoveTree deletes the tree for id; absent ids are a no-op.
func (s *Store) RemoveTree(id string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.treeMu.Lock()
	t, ok := s.trees[id]
	if ok {
		delete(s.trees, id)
	}
	s.treeMu.Unlock()

	if !ok {
		return nil
	}
	s.memoryUsage.Add(^(treeSize(t) - 1))
	s.recordEvent(storage.Event{Kind: storage.EventTreeRemoved, TreeID: id})
	return nil
}

// TreeIDs lists the identifiers of all stored trees, sorted.
func (s *Store) TreeIDs() ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	s.treeMu.RLock()
	ids := make([]string, 0, len(s.trees))
	for id := range s.trees {
		ids = append(ids, id)
	}
	s.treeMu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) touch(digest hashing.Digest) {
	s.lruMu.Lock()
	s.lastAccess[digest] = time.Now().UnixNano()
	s.lruMu.Unlock()
}

func (s *Store) forget(digest hashing.Digest) {
	s.lruMu.Lock()
	delete(s.lastAccess, digest)
	s.lruMu.Unlock()
}

// evictLocked removes least-recently-used blocks until estimated usage
// drops to targetBytes. Caller holds s.mu.
func (s *Store) evictLocked(targetBytes uint64) int {
	type candidate struct {
		digest hashing.Digest
		at     int64
	}

	s.lruMu.Lock()
	candidates := make([]candidate, 0, len(s.lastAccess))
	for d, at := range s.lastAccess {
		candidates = append(candidates, candidate{digest: d, at: at})
	}
	s.lruMu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].at < candidates[j].at })

	evicted := 0
	for _, c := range candidates {
		if s.memoryUsage.Load() <= targetBytes {
			break
		}
		entry, ok := s.blocks[c.digest]
		if !ok {
			continue
		}
		delete(s.blocks, c.digest)
		s.memoryUsage.Add(^(entry.size - 1))
		s.forget(c.digest)
		s.totalEvicted.Add(1)
		evicted++
		s.recordEvent(storage.Event{Kind: storage.EventBlockEvicted, Digest: c.digest})
	}
	if evicted > 0 {
		s.log.WithFields(logrus.Fields{
			"evicted": evicted,
			"usage":   s.memoryUsage.Load(),
			"target":  targetBytes,
		}).Debug("evicted blocks")
	}
	return evicted
}

// Maintain runs one maintenance pass: when usage exceeds the cleanup
// threshold, blocks are evicted down to the cleanup target. Returns
// the number of blocks evicted.
func (s *Store) Maintain() (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrClosed
	}
	return s.maintain(), nil
}

func (s *Store) maintain() int {
	if s.cfg.Unlimited || s.cfg.DisableEviction {
		return 0
	}
	threshold := uint64(float64(s.cfg.MemoryLimit) * s.cfg.CleanupThreshold)
	if s.memoryUsage.Load() <= threshold {
		return 0
	}
	target := uint64(float64(s.cfg.MemoryLimit) * s.cfg.CleanupTarget)

	s.mu.Lock()
	evicted := s.evictLocked(target)
	s.mu.Unlock()

	if evicted > 0 {
		s.recordEvent(storage.Event{Kind: storage.EventMaintenance, Detail: evicted})
	}
	return evicted
}

// Clear drops all blocks and trees and resets usage; counters of past
// activity survive.
func (s *Store) Clear() error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.mu.Lock()
	s.blocks = make(map[hashing.Digest]blockEntry)
	s.mu.Unlock()

	s.treeMu.Lock()
	s.trees = make(map[string]*merkle.Tree)
	s.treeMu.Unlock()

	s.lruMu.Lock()
	s.lastAccess = make(map[hashing.Digest]int64)
	s.lruMu.Unlock()

	s.memoryUsage.Store(0)
	s.largestBlock.Store(0)
	s.recordEvent(storage.Event{Kind: storage.EventCleared})
	return nil
}

// resetCounters zeroes the lifetime counters. Used by Restore, which
// replays the snapshot's contents into a counter-clean store.
func (s *Store) resetCounters() {
	s.totalStored.Store(0)
	s.totalEvicted.Store(0)
	s.dedupHits.Store(0)
	s.cacheHits.Store(0)
	s.cacheMisses.Store(0)
	s.largestBlock.Store(0)
}

// Stats returns a point-in-time snapshot of the store's counters.
func (s *Store) Stats() storage.Stats {
	s.mu.RLock()
	blockCount := len(s.blocks)
	s.mu.RUnlock()
	s.treeMu.RLock()
	treeCount := len(s.trees)
	s.treeMu.RUnlock()

	return storage.Stats{
		BlockCount:   blockCount,
		TreeCount:    treeCount,
		MemoryUsage:  s.memoryUsage.Load(),
		LargestBlock: s.largestBlock.Load(),
		TotalStored:  s.totalStored.Load(),
		TotalEvicted: s.totalEvicted.Load(),
		DedupHits:    s.dedupHits.Load(),
		CacheHits:    s.cacheHits.Load(),
		CacheMisses:  s.cacheMisses.Load(),
	}
}

// Quota returns current memory accounting against the limit.
func (s *Store) Quota() storage.QuotaUsage {
	return storage.QuotaUsage{
		Used:      s.memoryUsage.Load(),
		Limit:     s.cfg.MemoryLimit,
		Unlimited: s.cfg.Unlimited,
	}
}

func (s *Store) recordEvent(e storage.Event) {
	if !s.cfg.EnableEvents {
		return
	}
	e.Timestamp = time.Now()

	s.eventMu.Lock()
	if len(s.events) < s.cfg.MaxEvents {
		s.events = append(s.events, e)
	} else {
		// Ring is full: overwrite the oldest entry.
		s.events[s.eventPos] = e
		s.eventPos = (s.eventPos + 1) % s.cfg.MaxEvents
	}
	s.eventMu.Unlock()
}

// Events returns the recorded events oldest first. Empty unless
// EnableEvents is set.
func (s *Store) Events() []storage.Event {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	out := make([]storage.Event, 0, len(s.events))
	if len(s.events) < s.cfg.MaxEvents {
		out = append(out, s.events...)
		return out
	}
	out = append(out, s.events[s.eventPos:]...)
	out = append(out, s.events[:s.eventPos]...)
	return out
}

// Shutdown runs a final maintenance pass, then closes the store. All
// later operations fail with storage.ErrClosed. Idempotent.
func (s *Store) Shutdown() error {
	if s.closed.Load() {
		return nil
	}
	s.maintain()
	s.recordEvent(storage.Event{Kind: storage.EventShutdown})
	s.closed.Store(true)
	s.log.Debug("store shut down")
	return nil
}
