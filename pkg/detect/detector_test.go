package detect

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/model"
)

// mapStorage is an in-memory catalog for tests; it also counts batch
// round trips so caching behavior can be asserted.
type mapStorage struct {
	mu        sync.Mutex
	recs      map[string]StoredHash
	batchOps  int
	failBatch error
}

func newMapStorage() *mapStorage {
	return &mapStorage{recs: make(map[string]StoredHash)}
}

func (m *mapStorage) Get(path string) (StoredHash, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[path]
	return rec, ok, nil
}

func (m *mapStorage) GetBatch(paths []string) (map[string]StoredHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBatch != nil {
		return nil, m.failBatch
	}
	m.batchOps++
	out := make(map[string]StoredHash)
	for _, p := range paths {
		if rec, ok := m.recs[p]; ok {
			out[p] = rec
		}
	}
	return out, nil
}

func (m *mapStorage) Put(rec StoredHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Path] = rec
	return nil
}

func (m *mapStorage) PutBatch(recs []StoredHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.recs[rec.Path] = rec
	}
	return nil
}

func (m *mapStorage) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, path)
	return nil
}

func (m *mapStorage) AllPaths() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.recs))
	for p := range m.recs {
		out = append(out, p)
	}
	return out, nil
}

func (m *mapStorage) Close() error { return nil }

func digestOf(s string) hashing.Digest {
	return hashing.Blake3{}.Hash([]byte(s))
}

func fileInfo(path, content string) model.FileHashInfo {
	return model.FileHashInfo{
		Path:       path,
		Digest:     digestOf(content),
		Size:       int64(len(content)),
		ModifiedAt: time.Now(),
		Algorithm:  "blake3",
	}
}

func seed(t *testing.T, s HashLookupStorage, path, content string) {
	t.Helper()
	require.NoError(t, s.Put(StoredHash{
		Path:      path,
		Digest:    digestOf(content),
		Size:      int64(len(content)),
		Algorithm: "blake3",
		UpdatedAt: time.Now(),
	}))
}

func TestDetectClassification(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "same.md", "stable")
	seed(t, storage, "edited.md", "old body")
	seed(t, storage, "gone.md", "was here")

	d, err := New(storage, Config{})
	require.NoError(t, err)

	current := []model.FileHashInfo{
		fileInfo("same.md", "stable"),
		fileInfo("edited.md", "new body"),
		fileInfo("fresh.md", "brand new"),
	}

	cs, err := d.DetectChanges(context.Background(), current)
	require.NoError(t, err)

	require.Len(t, cs.Unchanged, 1)
	assert.Equal(t, "same.md", cs.Unchanged[0].Path)
	require.Len(t, cs.Changed, 1)
	assert.Equal(t, "edited.md", cs.Changed[0].Path)
	require.Len(t, cs.New, 1)
	assert.Equal(t, "fresh.md", cs.New[0].Path)
	require.Len(t, cs.Deleted, 1)
	assert.Equal(t, "gone.md", cs.Deleted[0])

	assert.True(t, cs.HasChanges())
	assert.Equal(t, 4, cs.Total())
	assert.Len(t, cs.NeedsUpdate(), 2)
}

func TestDetectEmptyVaultAllNew(t *testing.T) {
	d, err := New(newMapStorage(), Config{})
	require.NoError(t, err)

	cs, err := d.DetectChanges(context.Background(), []model.FileHashInfo{
		fileInfo("a.md", "a"),
		fileInfo("b.md", "b"),
	})
	require.NoError(t, err)
	assert.Len(t, cs.New, 2)
	assert.Empty(t, cs.Unchanged)
	assert.Empty(t, cs.Deleted)
}

func TestDetectNoFilesAllDeleted(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "a.md", "a")
	seed(t, storage, "b.md", "b")

	d, err := New(storage, Config{})
	require.NoError(t, err)

	cs, err := d.DetectChanges(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, cs.Deleted, 2)
	assert.False(t, len(cs.New) > 0 || len(cs.Changed) > 0)
}

func TestDetectBatchesLookups(t *testing.T) {
	storage := newMapStorage()
	var current []model.FileHashInfo
	for i := 0; i < 250; i++ {
		path := fmt.Sprintf("notes/%03d.md", i)
		seed(t, storage, path, "v1")
		current = append(current, fileInfo(path, "v1"))
	}

	d, err := New(storage, Config{BatchSize: 100, DisableCache: true})
	require.NoError(t, err)

	cs, metrics, err := d.DetectChangesWithMetrics(context.Background(), current)
	require.NoError(t, err)
	assert.Len(t, cs.Unchanged, 250)
	assert.Equal(t, 3, metrics.RoundTrips, "250 files at batch size 100 take 3 round trips")
	assert.Equal(t, 3, storage.batchOps)
}

func TestDetectSessionCacheSkipsRoundTrips(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "hot.md", "content")

	d, err := New(storage, Config{})
	require.NoError(t, err)

	current := []model.FileHashInfo{fileInfo("hot.md", "content")}

	_, m1, err := d.DetectChangesWithMetrics(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 1, m1.RoundTrips)
	assert.Equal(t, 1, m1.CacheMisses)

	_, m2, err := d.DetectChangesWithMetrics(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 0, m2.RoundTrips, "second run must be served from the session cache")
	assert.Equal(t, 1, m2.CacheHits)
	assert.Equal(t, 1.0, m2.CacheHitRate())
}

func TestDetectCancelled(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "a.md", "a")

	d, err := New(storage, Config{DisableCache: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.DetectChanges(ctx, []model.FileHashInfo{fileInfo("a.md", "a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectStorageError(t *testing.T) {
	storage := newMapStorage()
	storage.failBatch = fmt.Errorf("disk on fire")

	d, err := New(storage, Config{DisableCache: true})
	require.NoError(t, err)

	_, err = d.DetectChanges(context.Background(), []model.FileHashInfo{fileInfo("a.md", "a")})
	assert.ErrorContains(t, err, "disk on fire")
}

func TestCheckFileNeedsUpdate(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "known.md", "v1")

	d, err := New(storage, Config{})
	require.NoError(t, err)

	needs, err := d.CheckFileNeedsUpdate(fileInfo("unknown.md", "anything"))
	require.NoError(t, err)
	assert.True(t, needs, "uncataloged file needs update")

	needs, err = d.CheckFileNeedsUpdate(fileInfo("known.md", "v1"))
	require.NoError(t, err)
	assert.False(t, needs)

	needs, err = d.CheckFileNeedsUpdate(fileInfo("known.md", "v2"))
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestCommit(t *testing.T) {
	storage := newMapStorage()
	seed(t, storage, "edited.md", "old")
	seed(t, storage, "gone.md", "bye")

	d, err := New(storage, Config{})
	require.NoError(t, err)

	current := []model.FileHashInfo{
		fileInfo("edited.md", "new"),
		fileInfo("fresh.md", "hello"),
	}
	cs, err := d.DetectChanges(context.Background(), current)
	require.NoError(t, err)
	require.NoError(t, d.Commit(cs))

	// A second run over the same files sees no changes.
	cs2, err := d.DetectChanges(context.Background(), current)
	require.NoError(t, err)
	assert.False(t, cs2.HasChanges())
	assert.Len(t, cs2.Unchanged, 2)

	rec, ok, err := storage.Get("edited.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, digestOf("new"), rec.Digest)
	assert.False(t, rec.UpdatedAt.IsZero())

	_, ok, err = storage.Get("gone.md")
	require.NoError(t, err)
	assert.False(t, ok, "deleted paths are removed on commit")
}

func TestMetricsThroughput(t *testing.T) {
	storage := newMapStorage()
	d, err := New(storage, Config{})
	require.NoError(t, err)

	var current []model.FileHashInfo
	for i := 0; i < 50; i++ {
		current = append(current, fileInfo(fmt.Sprintf("f%d.md", i), "x"))
	}

	_, m, err := d.DetectChangesWithMetrics(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, 50, m.FilesScanned)
	assert.Greater(t, m.FilesPerSecond, 0.0)
	assert.Greater(t, m.Duration, time.Duration(0))
}
