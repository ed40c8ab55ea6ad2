// Package loreweave ties the hashing pipeline together: canonical
// block hashing, Merkle trees per document, a deduplicating in-memory
// block store, and catalog-backed change detection over a vault of
// files.
package loreweave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/internal/catalog"
	"github.com/loreweave/loreweave/internal/chunker"
	"github.com/loreweave/loreweave/internal/memstore"
	"github.com/loreweave/loreweave/pkg/blockhasher"
	"github.com/loreweave/loreweave/pkg/detect"
	"github.com/loreweave/loreweave/pkg/merkle"
	"github.com/loreweave/loreweave/pkg/model"
	"github.com/loreweave/loreweave/pkg/storage"
	"github.com/loreweave/loreweave/pkg/workerpool"
)

// ErrUnknownDocument is returned when an operation references a
// document id that was never ingested.
var ErrUnknownDocument = errors.New("loreweave: unknown document")

// Engine is the top-level handle. Create one per process with New,
// share it freely across goroutines, and Close it when done.
type Engine struct {
	log *logrus.Logger
	cfg Config

	pool     *workerpool.Pool
	hasher   *blockhasher.BlockHasher
	store    *memstore.Store
	catalog  *catalog.Catalog
	detector *detect.Detector

	closeOnce sync.Once
}

// New constructs an engine and opens its catalog. The returned engine
// is ready for use; there is no separate start step.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}

	pool := workerpool.New(workerpool.Config{WorkerCount: cfg.WorkerCount})

	hasher, err := blockhasher.New(blockhasher.Config{
		Algorithm: cfg.Algorithm,
		Pool:      pool,
		Logger:    cfg.Logger,
	})
	if err != nil {
		pool.Stop()
		return nil, err
	}

	store := memstore.New(memstore.Config{
		MemoryLimit:  cfg.MemoryLimit,
		Unlimited:    cfg.Unlimited,
		EnableEvents: cfg.EnableEvents,
		MaxEvents:    cfg.MaxEvents,
		Logger:       cfg.Logger,
	})

	cat, err := catalog.Open(catalog.Config{Path: cfg.CatalogPath, Logger: cfg.Logger})
	if err != nil {
		pool.Stop()
		return nil, err
	}

	detector, err := detect.New(cat, detect.Config{
		BatchSize: cfg.BatchSize,
		CacheSize: cfg.CacheSize,
		Logger:    cfg.Logger,
	})
	if err != nil {
		pool.Stop()
		_ = cat.Close()
		return nil, err
	}

	cfg.Logger.WithFields(logrus.Fields{
		"algorithm": hasher.Algorithm().Name(),
		"catalog":   cfg.CatalogPath,
	}).Debug("engine ready")

	return &Engine{
		log:      cfg.Logger,
		cfg:      cfg,
		pool:     pool,
		hasher:   hasher,
		store:    store,
		catalog:  cat,
		detector: detector,
	}, nil
}

// Hasher exposes the engine's block hasher for callers that need
// digests without storage.
func (e *Engine) Hasher() *blockhasher.BlockHasher { return e.hasher }

// IngestDocument hashes a document's blocks, stores them in the block
// store (duplicates dedup across documents), builds the document's
// Merkle tree, and stores the tree under id. Returns the tree.
func (e *Engine) IngestDocument(ctx context.Context, id string, blocks []model.Block) (*merkle.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, merkle.ErrEmptyInput
	}

	digests, err := e.hasher.HashBlocks(blocks)
	if err != nil {
		return nil, err
	}
	for i, d := range digests {
		if err := e.store.StoreBlock(d, blocks[i]); err != nil {
			return nil, fmt.Errorf("loreweave: storing block %d of %s: %w", i, id, err)
		}
	}

	tree, err := merkle.Build(digests, e.hasher.Algorithm())
	if err != nil {
		return nil, err
	}
	if err := e.store.StoreTree(id, tree); err != nil {
		return nil, fmt.Errorf("loreweave: storing tree for %s: %w", id, err)
	}

	e.log.WithFields(logrus.Fields{
		"document": id,
		"blocks":   len(blocks),
		"root":     tree.Root.Hex(),
	}).Debug("document ingested")
	return tree, nil
}

// IngestFile chunks an arbitrary file into generic blocks and ingests
// it under its path. Binary attachments go through the same pipeline
// as parsed documents this way.
func (e *Engine) IngestFile(ctx context.Context, path string) (*merkle.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loreweave: opening %s: %w", path, err)
	}
	defer f.Close()

	blocks, err := chunker.Chunk(f, chunker.Config{})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("loreweave: %s is empty: %w", path, merkle.ErrEmptyInput)
	}
	return e.IngestDocument(ctx, path, blocks)
}

// DocumentTree returns the stored Merkle tree for id.
func (e *Engine) DocumentTree(id string) (*merkle.Tree, error) {
	tree, ok, err := e.store.GetTree(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loreweave: %s: %w", id, ErrUnknownDocument)
	}
	return tree, nil
}

// DiffDocument compares the stored tree for id against a fresh set of
// blocks and returns the block-level changes, nil when nothing
// changed. The stored state is not modified.
func (e *Engine) DiffDocument(ctx context.Context, id string, blocks []model.Block) ([]merkle.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	old, err := e.DocumentTree(id)
	if err != nil {
		return nil, err
	}
	fresh, err := e.hasher.BuildTree(blocks)
	if err != nil {
		return nil, err
	}
	return old.CompareWith(fresh), nil
}

// VerifyDocument re-checks the stored tree's internal consistency and
// re-hashes every stored block it references. A block missing from the
// store (evicted) fails verification.
func (e *Engine) VerifyDocument(id string) error {
	tree, err := e.DocumentTree(id)
	if err != nil {
		return err
	}
	if err := tree.VerifyIntegrity(e.hasher.Algorithm()); err != nil {
		return err
	}
	for i, d := range tree.Leaves {
		block, ok, err := e.store.GetBlock(d)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("loreweave: %s: block %d (%s) not in store", id, i, d.Hex())
		}
		if !e.hasher.VerifyBlockHash(block, d) {
			return fmt.Errorf("loreweave: %s: block %d does not match its digest", id, i)
		}
	}
	return nil
}

// ScanFiles digests the given files and classifies them against the
// catalog. The catalog is unchanged until CommitChanges.
func (e *Engine) ScanFiles(ctx context.Context, paths []string) (*detect.ChangeSet, error) {
	infos, err := e.hasher.HashFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	return e.detector.DetectChanges(ctx, infos)
}

// DetectChanges classifies pre-hashed files against the catalog.
func (e *Engine) DetectChanges(ctx context.Context, infos []model.FileHashInfo) (*detect.ChangeSet, error) {
	return e.detector.DetectChanges(ctx, infos)
}

// FileNeedsUpdate reports whether a single file must be re-ingested.
func (e *Engine) FileNeedsUpdate(info model.FileHashInfo) (bool, error) {
	return e.detector.CheckFileNeedsUpdate(info)
}

// CommitChanges persists a detection outcome into the catalog.
func (e *Engine) CommitChanges(cs *detect.ChangeSet) error {
	return e.detector.Commit(cs)
}

// Stats reports the block store's counters and quota.
func (e *Engine) Stats() (storage.Stats, storage.QuotaUsage) {
	return e.store.Stats(), e.store.Quota()
}

// Events returns the store's recorded events, oldest first. Empty
// unless Config.EnableEvents was set.
func (e *Engine) Events() []storage.Event {
	return e.store.Events()
}

// WriteSnapshot streams a compressed snapshot of the block store to w.
func (e *Engine) WriteSnapshot(w io.Writer) error {
	return e.store.WriteSnapshot(w)
}

// ReadSnapshot restores the block store from a snapshot stream,
// replacing its current contents.
func (e *Engine) ReadSnapshot(r io.Reader) error {
	return e.store.ReadSnapshot(r)
}

// Close shuts the engine down: a final store maintenance pass, then
// the catalog and the worker pool. Idempotent.
func (e *Engine) Close() error {
	var closeErr error
	e.closeOnce.Do(func() {
		if err := e.store.Shutdown(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("loreweave: store shutdown: %w", err))
		}
		if err := e.catalog.Close(); err != nil {
			closeErr = errors.Join(closeErr, err)
		}
		e.pool.Stop()
		e.log.Debug("engine closed")
	})
	return closeErr
}
