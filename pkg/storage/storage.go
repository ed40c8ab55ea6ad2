// Package storage defines the contracts and shared types of the
// content-addressed store: block and tree operations, lifecycle
// management, statistics, and the event stream. The in-memory
// implementation lives in internal/memstore; callers program against
// these interfaces so a persistent backend can slot in later.
package storage

import (
	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/merkle"
	"github.com/loreweave/loreweave/pkg/model"
)

// BlockOperations is the content-addressed block surface. Keys are the
// blocks' own digests, so storing the same content twice is a no-op
// that reports a deduplication hit.
type BlockOperations interface {
	// StoreBlock stores the block under its digest. Re-storing an
	// existing digest counts a dedup hit and succeeds without
	// mutating the stored copy.
	StoreBlock(digest hashing.Digest, block model.Block) error
	// GetBlock retrieves a block by digest. The ok result is false
	// when the digest is absent; absence is not an error.
	GetBlock(digest hashing.Digest) (model.Block, bool, error)
	// HasBlock reports whether a digest is present without touching
	// access-tracking state.
	HasBlock(digest hashing.Digest) (bool, error)
	// RemoveBlock deletes a block. Removing an absent digest is a
	// no-op.
	RemoveBlock(digest hashing.Digest) error
}

// TreeOperations stores Merkle trees keyed by an external identifier,
// typically the file path the tree was built from.
type TreeOperations interface {
	// StoreTree stores (or replaces) the tree for id.
	StoreTree(id string, tree *merkle.Tree) error
	// GetTree retrieves the tree for id; ok is false when absent.
	GetTree(id string) (*merkle.Tree, bool, error)
	// RemoveTree deletes the tree for id. Absent ids are a no-op.
	RemoveTree(id string) error
	// TreeIDs lists the identifiers of all stored trees.
	TreeIDs() ([]string, error)
}

// Management is the lifecycle and introspection surface of a store.
type Management interface {
	// Stats returns a point-in-time snapshot of the store's counters.
	Stats() Stats
	// Quota returns current memory accounting against the limit.
	Quota() QuotaUsage
	// Maintain runs one maintenance pass (eviction toward the cleanup
	// target when usage exceeds the threshold) and returns the number
	// of blocks evicted.
	Maintain() (int, error)
	// Clear drops all blocks and trees and resets usage to zero.
	// Counters of past activity survive.
	Clear() error
	// Events returns the most recent lifecycle events, oldest first.
	// Empty unless event recording is enabled.
	Events() []Event
	// Shutdown runs a final maintenance pass and closes the store.
	// All subsequent operations fail with ErrClosed. Shutdown is
	// idempotent.
	Shutdown() error
}

// Store is the full contract of a content-addressed store.
type Store interface {
	BlockOperations
	TreeOperations
	Management
}
