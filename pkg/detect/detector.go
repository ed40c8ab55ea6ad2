package detect

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/pkg/model"
)

const (
	// DefaultBatchSize is the number of catalog lookups grouped into
	// one round trip.
	DefaultBatchSize = 100
	// DefaultCacheSize bounds the session lookup cache.
	DefaultCacheSize = 4096
)

// Config configures a Detector. Zero values select the defaults; set
// DisableCache to force every lookup to the catalog.
type Config struct {
	BatchSize    int
	CacheSize    int
	DisableCache bool
	Logger       *logrus.Logger
}

// Metrics describes one detection run.
type Metrics struct {
	Duration       time.Duration
	FilesScanned   int
	RoundTrips     int
	CacheHits      int
	CacheMisses    int
	FilesPerSecond float64
}

// CacheHitRate returns the fraction of lookups served from the
// session cache, in [0, 1].
func (m Metrics) CacheHitRate() float64 {
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total)
}

// Detector classifies scanned files against a hash catalog. Safe for
// concurrent use; the session cache is internally synchronized.
type Detector struct {
	storage HashLookupStorage
	cfg     Config
	cache   *lru.Cache // path -> StoredHash
	log     *logrus.Logger
}

// New creates a detector over the given catalog.
func New(storage HashLookupStorage, cfg Config) (*Detector, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}

	d := &Detector{storage: storage, cfg: cfg, log: cfg.Logger}
	if !cfg.DisableCache {
		cache, err := lru.New(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("detect: creating session cache: %w", err)
		}
		d.cache = cache
	}
	return d, nil
}

// DetectChanges classifies current against the catalog. Files absent
// from the catalog are New, files whose digest differs are Changed,
// matching digests are Unchanged, and cataloged paths missing from
// current are Deleted. The catalog itself is not modified; call
// Commit to persist the outcome.
func (d *Detector) DetectChanges(ctx context.Context, current []model.FileHashInfo) (*ChangeSet, error) {
	cs, _, err := d.detect(ctx, current)
	return cs, err
}

// DetectChangesWithMetrics is DetectChanges plus run metrics.
func (d *Detector) DetectChangesWithMetrics(ctx context.Context, current []model.FileHashInfo) (*ChangeSet, Metrics, error) {
	return d.detect(ctx, current)
}

func (d *Detector) detect(ctx context.Context, current []model.FileHashInfo) (*ChangeSet, Metrics, error) {
	start := time.Now()
	metrics := Metrics{FilesScanned: len(current)}
	cs := &ChangeSet{}

	// Serve what we can from the session cache, then batch the rest.
	stored := make(map[string]StoredHash, len(current))
	var misses []string
	for _, info := range current {
		if rec, ok := d.cacheGet(info.Path); ok {
			stored[info.Path] = rec
			metrics.CacheHits++
			continue
		}
		metrics.CacheMisses++
		misses = append(misses, info.Path)
	}

	for len(misses) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, metrics, err
		}
		n := d.cfg.BatchSize
		if len(misses) < n {
			n = len(misses)
		}
		batch, err := d.storage.GetBatch(misses[:n])
		if err != nil {
			return nil, metrics, fmt.Errorf("detect: catalog batch lookup: %w", err)
		}
		metrics.RoundTrips++
		for path, rec := range batch {
			stored[path] = rec
			d.cachePut(rec)
		}
		misses = misses[n:]
	}

	currentPaths := make(map[string]struct{}, len(current))
	for _, info := range current {
		currentPaths[info.Path] = struct{}{}
		rec, ok := stored[info.Path]
		switch {
		case !ok:
			cs.New = append(cs.New, info)
		case rec.Digest == info.Digest:
			cs.Unchanged = append(cs.Unchanged, info)
		default:
			cs.Changed = append(cs.Changed, info)
		}
	}

	known, err := d.storage.AllPaths()
	if err != nil {
		return nil, metrics, fmt.Errorf("detect: listing cataloged paths: %w", err)
	}
	for _, path := range known {
		if _, ok := currentPaths[path]; !ok {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	metrics.Duration = time.Since(start)
	if secs := metrics.Duration.Seconds(); secs > 0 {
		metrics.FilesPerSecond = float64(len(current)) / secs
	}

	d.log.WithFields(logrus.Fields{
		"scanned":   len(current),
		"unchanged": len(cs.Unchanged),
		"changed":   len(cs.Changed),
		"new":       len(cs.New),
		"deleted":   len(cs.Deleted),
		"duration":  metrics.Duration,
	}).Debug("change detection run")

	return cs, metrics, nil
}

// CheckFileNeedsUpdate reports whether a single file must be
// re-ingested: true when it is absent from the catalog or its digest
// differs.
func (d *Detector) CheckFileNeedsUpdate(info model.FileHashInfo) (bool, error) {
	if rec, ok := d.cacheGet(info.Path); ok {
		return rec.Digest != info.Digest, nil
	}
	rec, ok, err := d.storage.Get(info.Path)
	if err != nil {
		return false, fmt.Errorf("detect: catalog lookup for %s: %w", info.Path, err)
	}
	if !ok {
		return true, nil
	}
	d.cachePut(rec)
	return rec.Digest != info.Digest, nil
}

// Commit persists a detection outcome: new and changed files are
// written to the catalog, deleted paths are removed, and the session
// cache is updated to match.
func (d *Detector) Commit(cs *ChangeSet) error {
	now := time.Now()
	recs := make([]StoredHash, 0, len(cs.New)+len(cs.Changed))
	for _, info := range cs.NeedsUpdate() {
		recs = append(recs, StoredHash{
			Path:       info.Path,
			Digest:     info.Digest,
			Size:       info.Size,
			ModifiedAt: info.ModifiedAt,
			Algorithm:  info.Algorithm,
			UpdatedAt:  now,
		})
	}
	if len(recs) > 0 {
		if err := d.storage.PutBatch(recs); err != nil {
			return fmt.Errorf("detect: committing records: %w", err)
		}
		for _, rec := range recs {
			d.cachePut(rec)
		}
	}
	for _, path := range cs.Deleted {
		if err := d.storage.Delete(path); err != nil {
			return fmt.Errorf("detect: deleting %s: %w", path, err)
		}
		d.cacheRemove(path)
	}
	return nil
}

func (d *Detector) cacheGet(path string) (StoredHash, bool) {
	if d.cache == nil {
		return StoredHash{}, false
	}
	v, ok := d.cache.Get(path)
	if !ok {
		return StoredHash{}, false
	}
	return v.(StoredHash), true
}

func (d *Detector) cachePut(rec StoredHash) {
	if d.cache != nil {
		d.cache.Add(rec.Path, rec)
	}
}

func (d *Detector) cacheRemove(path string) {
	if d.cache != nil {
		d.cache.Remove(path)
	}
}
