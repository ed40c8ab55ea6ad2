package memstore

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/ulikunitz/xz"

	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/merkle"
	"github.com/loreweave/loreweave/pkg/model"
	"github.com/loreweave/loreweave/pkg/storage"
)

// snapshotVersion guards the stream format. Bump on any change to the
// record shapes below.
const snapshotVersion = 1

// BlockRecord is one stored block in a snapshot.
type BlockRecord struct {
	Digest hashing.Digest `cbor:"1,keyasint"`
	Block  model.Block    `cbor:"2,keyasint"`
}

// TreeRecord is one stored tree in a snapshot. Only the leaves and the
// algorithm are persisted; the tree is rebuilt on restore, which is
// cheaper than serializing the node map and guarantees the restored
// tree matches current construction rules.
type TreeRecord struct {
	ID        string           `cbor:"1,keyasint"`
	Leaves    []hashing.Digest `cbor:"2,keyasint"`
	Algorithm string           `cbor:"3,keyasint"`
}

// Snapshot is a point-in-time copy of a store's contents, suitable for
// persistence and for seeding another store. Stats records the source
// store's counters at capture time; it is informational and not
// replayed on restore.
type Snapshot struct {
	Version   int           `cbor:"1,keyasint"`
	CreatedAt time.Time     `cbor:"2,keyasint"`
	Blocks    []BlockRecord `cbor:"3,keyasint"`
	Trees     []TreeRecord  `cbor:"4,keyasint"`
	Stats     storage.Stats `cbor:"5,keyasint"`
}

// Snapshot captures the store's current blocks, trees, and counters.
func (s *Store) Snapshot() (*Snapshot, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}

	snap := &Snapshot{Version: snapshotVersion, CreatedAt: time.Now(), Stats: s.Stats()}

	s.mu.RLock()
	snap.Blocks = make([]BlockRecord, 0, len(s.blocks))
	for d, entry := range s.blocks {
		snap.Blocks = append(snap.Blocks, BlockRecord{Digest: d, Block: entry.block})
	}
	s.mu.RUnlock()

	s.treeMu.RLock()
	snap.Trees = make([]TreeRecord, 0, len(s.trees))
	for id, t := range s.trees {
		leaves := make([]hashing.Digest, len(t.Leaves))
		copy(leaves, t.Leaves)
		snap.Trees = append(snap.Trees, TreeRecord{ID: id, Leaves: leaves, Algorithm: t.Algorithm})
	}
	s.treeMu.RUnlock()

	return snap, nil
}

// Restore replaces the store's contents with the snapshot's. Existing
// data is cleared and all counters reset before replay, so the
// restored store's counters reflect only the replay itself. Trees are
// rebuilt from their leaves with the algorithm recorded per tree.
func (s *Store) Restore(snap *Snapshot) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := s.Clear(); err != nil {
		return err
	}
	s.resetCounters()

	for _, rec := range snap.Blocks {
		if err := s.StoreBlock(rec.Digest, rec.Block); err != nil {
			return err
		}
	}
	for _, rec := range snap.Trees {
		alg, err := hashing.New(rec.Algorithm)
		if err != nil {
			return &storage.SnapshotError{Op: "decode", Err: err}
		}
		tree, err := merkle.Build(rec.Leaves, alg)
		if err != nil {
			return &storage.SnapshotError{Op: "decode", Err: err}
		}
		if err := s.StoreTree(rec.ID, tree); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshot streams an xz-compressed CBOR snapshot to w.
func (s *Store) WriteSnapshot(w io.Writer) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return &storage.SnapshotError{Op: "compress", Err: err}
	}
	if err := cbor.NewEncoder(xw).Encode(snap); err != nil {
		return &storage.SnapshotError{Op: "encode", Err: err}
	}
	if err := xw.Close(); err != nil {
		return &storage.SnapshotError{Op: "compress", Err: err}
	}
	return nil
}

// ReadSnapshot decodes an xz-compressed CBOR snapshot from r and
// restores it into the store.
func (s *Store) ReadSnapshot(r io.Reader) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return &storage.SnapshotError{Op: "decompress", Err: err}
	}
	var snap Snapshot
	if err := cbor.NewDecoder(xr).Decode(&snap); err != nil {
		return &storage.SnapshotError{Op: "decode", Err: err}
	}
	return s.Restore(&snap)
}

// ImportFrom copies another store's contents into this one without
// clearing existing data. Colliding block digests dedup; colliding
// tree ids are replaced.
func (s *Store) ImportFrom(other *Store) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	snap, err := other.Snapshot()
	if err != nil {
		return err
	}
	for _, rec := range snap.Blocks {
		if err := s.StoreBlock(rec.Digest, rec.Block); err != nil {
			return err
		}
	}
	for _, rec := range snap.Trees {
		alg, err := hashing.New(rec.Algorithm)
		if err != nil {
			return &storage.SnapshotError{Op: "decode", Err: err}
		}
		tree, err := merkle.Build(rec.Leaves, alg)
		if err != nil {
			return &storage.SnapshotError{Op: "decode", Err: err}
		}
		if err := s.StoreTree(rec.ID, tree); err != nil {
			return err
		}
	}
	return nil
}
