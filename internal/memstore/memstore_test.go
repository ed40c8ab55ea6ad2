package memstore

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/pkg/blockhasher"
	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/model"
	"github.com/loreweave/loreweave/pkg/storage"
)

// Store must satisfy the full storage contract.
var _ storage.Store = (*Store)(nil)

func testBlock(t *testing.T, content string) (hashing.Digest, model.Block) {
	t.Helper()
	b := model.NewBlock(model.BlockParagraph, content, 0, len(content), model.GenericMetadata())
	h, err := blockhasher.New(blockhasher.Config{})
	require.NoError(t, err)
	d, err := h.HashBlock(b)
	require.NoError(t, err)
	return d, b
}

func TestStoreAndGetBlock(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "hello world")

	require.NoError(t, s.StoreBlock(d, b))

	got, ok, err := s.GetBlock(d)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, got)

	stats := s.Stats()
	assert.Equal(t, 1, stats.BlockCount)
	assert.Equal(t, uint64(1), stats.TotalStored)
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Greater(t, stats.LargestBlock, uint64(0))
}

func TestGetMissingBlock(t *testing.T) {
	s := New(Config{})
	_, ok, err := s.GetBlock(hashing.Digest{1})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().CacheMisses)
}

func TestDedupHit(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "same content")

	require.NoError(t, s.StoreBlock(d, b))
	usage := s.Quota().Used
	require.NoError(t, s.StoreBlock(d, b))

	stats := s.Stats()
	assert.Equal(t, 1, stats.BlockCount)
	assert.Equal(t, uint64(1), stats.TotalStored, "second store must not count as stored")
	assert.Equal(t, uint64(1), stats.DedupHits)
	assert.Equal(t, usage, s.Quota().Used, "dedup must not grow usage")
}

func TestHasBlockDoesNotTouchLRU(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "x")
	require.NoError(t, s.StoreBlock(d, b))

	before := s.Stats()
	ok, err := s.HasBlock(d)
	require.NoError(t, err)
	assert.True(t, ok)
	after := s.Stats()
	assert.Equal(t, before.CacheHits, after.CacheHits)
}

func TestRemoveBlock(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "to remove")
	require.NoError(t, s.StoreBlock(d, b))
	require.NoError(t, s.RemoveBlock(d))

	_, ok, err := s.GetBlock(d)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), s.Quota().Used)

	// Removing again is a no-op.
	assert.NoError(t, s.RemoveBlock(d))
}

func TestQuotaRejectsWhenEvictionDisabled(t *testing.T) {
	s := New(Config{MemoryLimit: 400, DisableEviction: true})

	d1, b1 := testBlock(t, strings.Repeat("a", 100))
	require.NoError(t, s.StoreBlock(d1, b1))

	d2, b2 := testBlock(t, strings.Repeat("b", 300))
	err := s.StoreBlock(d2, b2)
	require.Error(t, err)
	var qe *storage.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, uint64(400), qe.Limit)

	// Existing data untouched.
	_, ok, err := s.GetBlock(d1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuotaEvictsLRU(t *testing.T) {
	// Each 100-byte block costs 100+overhead; limit fits two.
	s := New(Config{MemoryLimit: 500})

	d1, b1 := testBlock(t, strings.Repeat("a", 100))
	d2, b2 := testBlock(t, strings.Repeat("b", 100))
	require.NoError(t, s.StoreBlock(d1, b1))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.StoreBlock(d2, b2))
	time.Sleep(2 * time.Millisecond)

	// Touch d1 so d2 becomes the eviction candidate.
	_, _, err := s.GetBlock(d1)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	d3, b3 := testBlock(t, strings.Repeat("c", 100))
	require.NoError(t, s.StoreBlock(d3, b3))

	ok, err := s.HasBlock(d1)
	require.NoError(t, err)
	assert.True(t, ok, "recently used block must survive")

	ok, err = s.HasBlock(d2)
	require.NoError(t, err)
	assert.False(t, ok, "least recently used block must be evicted")

	assert.GreaterOrEqual(t, s.Stats().TotalEvicted, uint64(1))
}

func TestBlockLargerThanLimit(t *testing.T) {
	s := New(Config{MemoryLimit: 200})
	d, b := testBlock(t, strings.Repeat("a", 500))
	err := s.StoreBlock(d, b)
	var qe *storage.QuotaExceededError
	assert.ErrorAs(t, err, &qe)
}

func TestUnlimitedStore(t *testing.T) {
	s := New(Config{Unlimited: true})
	for i := 0; i < 50; i++ {
		d, b := testBlock(t, strings.Repeat("z", 1000)+string(rune(i)))
		require.NoError(t, s.StoreBlock(d, b))
	}
	assert.Equal(t, 50, s.Stats().BlockCount)
	assert.True(t, s.Quota().Unlimited)
}

func TestMaintainHysteresis(t *testing.T) {
	s := New(Config{MemoryLimit: 10000, CleanupThreshold: 0.9, CleanupTarget: 0.7})

	// Fill past 90% of the limit.
	var digests []hashing.Digest
	for i := 0; s.Quota().Used < 9100; i++ {
		d, b := testBlock(t, strings.Repeat("m", 300)+string(rune('a'+i%26))+string(rune('a'+i/26)))
		require.NoError(t, s.StoreBlock(d, b))
		digests = append(digests, d)
		time.Sleep(time.Millisecond)
	}

	evicted, err := s.Maintain()
	require.NoError(t, err)
	assert.Greater(t, evicted, 0)
	assert.LessOrEqual(t, s.Quota().Used, uint64(7000))

	// Below the threshold a second pass does nothing.
	evicted, err = s.Maintain()
	require.NoError(t, err)
	assert.Equal(t, 0, evicted)
}

func TestTreesRoundTrip(t *testing.T) {
	s := New(Config{})
	h, err := blockhasher.New(blockhasher.Config{})
	require.NoError(t, err)

	tree, err := h.BuildTree([]model.Block{
		model.NewBlock(model.BlockParagraph, "a", 0, 1, model.GenericMetadata()),
		model.NewBlock(model.BlockParagraph, "b", 2, 3, model.GenericMetadata()),
	})
	require.NoError(t, err)

	require.NoError(t, s.StoreTree("notes/a.md", tree))

	got, ok, err := s.GetTree("notes/a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree.Root, got.Root)

	ids, err := s.TreeIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/a.md"}, ids)

	require.NoError(t, s.RemoveTree("notes/a.md"))
	_, ok, err = s.GetTree("notes/a.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearKeepsCounters(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "data")
	require.NoError(t, s.StoreBlock(d, b))
	require.NoError(t, s.Clear())

	stats := s.Stats()
	assert.Equal(t, 0, stats.BlockCount)
	assert.Equal(t, uint64(0), stats.MemoryUsage)
	assert.Equal(t, uint64(1), stats.TotalStored, "lifetime counters survive Clear")
}

func TestEventsDisabledByDefault(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "quiet")
	require.NoError(t, s.StoreBlock(d, b))
	assert.Empty(t, s.Events())
}

func TestEventsRecorded(t *testing.T) {
	s := New(Config{EnableEvents: true})
	d, b := testBlock(t, "loud")
	require.NoError(t, s.StoreBlock(d, b))
	require.NoError(t, s.RemoveBlock(d))

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, storage.EventBlockStored, events[0].Kind)
	assert.Equal(t, storage.EventBlockRemoved, events[1].Kind)
	assert.Equal(t, d, events[0].Digest)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEventRingBounded(t *testing.T) {
	s := New(Config{EnableEvents: true, MaxEvents: 5, Unlimited: true})

	var last hashing.Digest
	for i := 0; i < 12; i++ {
		d, b := testBlock(t, "ev"+string(rune('a'+i)))
		require.NoError(t, s.StoreBlock(d, b))
		last = d
	}

	events := s.Events()
	require.Len(t, events, 5)
	assert.Equal(t, last, events[4].Digest, "newest event is last")
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}

func TestShutdown(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "bye")
	require.NoError(t, s.StoreBlock(d, b))

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown(), "shutdown is idempotent")

	assert.ErrorIs(t, s.StoreBlock(d, b), storage.ErrClosed)
	_, _, err := s.GetBlock(d)
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = s.Maintain()
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Clear(), storage.ErrClosed)
}

func TestSnapshotRestore(t *testing.T) {
	s := New(Config{})
	h, err := blockhasher.New(blockhasher.Config{})
	require.NoError(t, err)

	blocks := []model.Block{
		model.NewBlock(model.BlockHeading, "Title", 0, 7, model.HeadingMetadata(1, "")),
		model.NewBlock(model.BlockParagraph, "Body", 8, 12, model.GenericMetadata()),
	}
	digests, err := h.HashBlocks(blocks)
	require.NoError(t, err)
	for i, d := range digests {
		require.NoError(t, s.StoreBlock(d, blocks[i]))
	}
	tree, err := h.BuildTree(blocks)
	require.NoError(t, err)
	require.NoError(t, s.StoreTree("doc.md", tree))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Blocks, 2)
	assert.Len(t, snap.Trees, 1)

	restored := New(Config{})
	require.NoError(t, restored.Restore(snap))

	got, ok, err := restored.GetBlock(digests[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blocks[0], got)

	rt, ok, err := restored.GetTree("doc.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree.Root, rt.Root, "rebuilt tree must reproduce the root")

	// Counters were reset before replay, so they reflect only the
	// replayed content.
	assert.Equal(t, uint64(2), restored.Stats().TotalStored)
	assert.Equal(t, uint64(2), snap.Stats.TotalStored, "snapshot records the source counters")
}

func TestSnapshotStreamRoundTrip(t *testing.T) {
	s := New(Config{})
	d, b := testBlock(t, "persist me")
	require.NoError(t, s.StoreBlock(d, b))

	var buf bytes.Buffer
	require.NoError(t, s.WriteSnapshot(&buf))
	assert.NotZero(t, buf.Len())

	restored := New(Config{})
	require.NoError(t, restored.ReadSnapshot(&buf))

	got, ok, err := restored.GetBlock(d)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestReadSnapshotGarbage(t *testing.T) {
	s := New(Config{})
	err := s.ReadSnapshot(bytes.NewReader([]byte("not an xz stream")))
	require.Error(t, err)
	var se *storage.SnapshotError
	assert.ErrorAs(t, err, &se)
}

func TestImportFrom(t *testing.T) {
	src := New(Config{})
	dst := New(Config{})

	d1, b1 := testBlock(t, "src only")
	require.NoError(t, src.StoreBlock(d1, b1))
	d2, b2 := testBlock(t, "dst only")
	require.NoError(t, dst.StoreBlock(d2, b2))

	require.NoError(t, dst.ImportFrom(src))

	for _, d := range []hashing.Digest{d1, d2} {
		ok, err := dst.HasBlock(d)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
