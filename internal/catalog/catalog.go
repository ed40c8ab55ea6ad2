// Package catalog is the Badger-backed hash catalog behind change
// detection. Records are CBOR-encoded StoredHash values keyed by file
// path under a reserved prefix. With no path configured the catalog
// runs fully in memory, which is the default for tests and one-shot
// pipelines.
package catalog

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/pkg/detect"
)

// keyPrefix namespaces catalog records so the database can host other
// record kinds later without a migration.
var keyPrefix = []byte("fh:")

// Config configures a Catalog. An empty Path selects Badger's
// in-memory mode.
type Config struct {
	Path   string
	Logger *logrus.Logger
}

// Catalog implements detect.HashLookupStorage on Badger.
type Catalog struct {
	db  *badger.DB
	log *logrus.Logger
}

var _ detect.HashLookupStorage = (*Catalog)(nil)

// Open opens (or creates) the catalog.
func Open(cfg Config) (*Catalog, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetLevel(logrus.WarnLevel)
	}

	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = false
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening badger at %q: %w", cfg.Path, err)
	}
	return &Catalog{db: db, log: cfg.Logger}, nil
}

func key(path string) []byte {
	return append(append([]byte{}, keyPrefix...), path...)
}

// Get returns the record for path; ok is false when absent.
func (c *Catalog) Get(path string) (detect.StoredHash, bool, error) {
	var rec detect.StoredHash
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := cbor.Unmarshal(val, &rec); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return detect.StoredHash{}, false, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	return rec, found, nil
}

// GetBatch returns the records for the given paths in one read
// transaction. Absent paths are missing from the result.
func (c *Catalog) GetBatch(paths []string) (map[string]detect.StoredHash, error) {
	out := make(map[string]detect.StoredHash, len(paths))

	err := c.db.View(func(txn *badger.Txn) error {
		for _, path := range paths {
			item, err := txn.Get(key(path))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var rec detect.StoredHash
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out[path] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: batch read of %d paths: %w", len(paths), err)
	}
	return out, nil
}

// Put inserts or replaces a record.
func (c *Catalog) Put(rec detect.StoredHash) error {
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("catalog: encoding record for %s: %w", rec.Path, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.Path), data)
	})
	if err != nil {
		return fmt.Errorf("catalog: writing %s: %w", rec.Path, err)
	}
	return nil
}

// PutBatch inserts or replaces many records through a write batch.
func (c *Catalog) PutBatch(recs []detect.StoredHash) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range recs {
		data, err := cbor.Marshal(rec)
		if err != nil {
			return fmt.Errorf("catalog: encoding record for %s: %w", rec.Path, err)
		}
		if err := wb.Set(key(rec.Path), data); err != nil {
			return fmt.Errorf("catalog: batching %s: %w", rec.Path, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("catalog: flushing %d records: %w", len(recs), err)
	}
	c.log.WithField("records", len(recs)).Debug("catalog batch write")
	return nil
}

// Delete removes the record for path; absent paths are a no-op.
func (c *Catalog) Delete(path string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(path))
	})
	if err != nil {
		return fmt.Errorf("catalog: deleting %s: %w", path, err)
	}
	return nil
}

// AllPaths lists every cataloged path via a key-only prefix scan.
func (c *Catalog) AllPaths() ([]string, error) {
	var paths []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			paths = append(paths, string(k[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: listing paths: %w", err)
	}
	return paths, nil
}

// Close syncs and closes the database.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: closing badger: %w", err)
	}
	return nil
}
