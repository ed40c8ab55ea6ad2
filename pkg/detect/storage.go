// Package detect classifies files as unchanged, changed, new, or
// deleted by comparing fresh digests against a persistent hash
// catalog. Lookups are batched and a session LRU cache short-circuits
// repeated lookups for hot paths.
package detect

import (
	"time"

	"github.com/loreweave/loreweave/pkg/hashing"
)

// StoredHash is one catalog record: the last known digest of a file
// plus enough metadata to reason about staleness.
type StoredHash struct {
	Path       string         `cbor:"1,keyasint"`
	Digest     hashing.Digest `cbor:"2,keyasint"`
	Size       int64          `cbor:"3,keyasint"`
	ModifiedAt time.Time      `cbor:"4,keyasint"`
	Algorithm  string         `cbor:"5,keyasint"`
	UpdatedAt  time.Time      `cbor:"6,keyasint"`
}

// HashLookupStorage is the persistent catalog behind change detection.
// Lookups report absence through the ok result (or by omitting the key
// from a batch result); a missing path is a normal answer, not an
// error.
type HashLookupStorage interface {
	// Get returns the record for path; ok is false when absent.
	Get(path string) (StoredHash, bool, error)
	// GetBatch returns the records for the given paths, keyed by
	// path. Absent paths are simply missing from the result.
	GetBatch(paths []string) (map[string]StoredHash, error)
	// Put inserts or replaces a record.
	Put(rec StoredHash) error
	// PutBatch inserts or replaces many records atomically.
	PutBatch(recs []StoredHash) error
	// Delete removes the record for path; absent paths are a no-op.
	Delete(path string) error
	// AllPaths lists every cataloged path.
	AllPaths() ([]string, error)
	// Close releases the catalog's resources.
	Close() error
}
