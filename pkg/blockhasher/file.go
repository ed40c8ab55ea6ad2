package blockhasher

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/loreweave/loreweave/pkg/model"
)

// HashFile digests a file's raw bytes and returns the digest together
// with the file's size and modification time.
func (h *BlockHasher) HashFile(path string) (model.FileHashInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FileHashInfo{}, fmt.Errorf("blockhasher: reading %s: %w", path, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return model.FileHashInfo{}, fmt.Errorf("blockhasher: stat %s: %w", path, err)
	}
	return model.FileHashInfo{
		Path:       path,
		Digest:     h.alg.Hash(data),
		Size:       fi.Size(),
		ModifiedAt: fi.ModTime(),
		Algorithm:  h.alg.Name(),
	}, nil
}

// HashFiles digests many files concurrently, bounded by the worker
// count, and returns results in input order: result[i] corresponds to
// paths[i]. The first failure cancels the remaining reads.
func (h *BlockHasher) HashFiles(ctx context.Context, paths []string) ([]model.FileHashInfo, error) {
	out := make([]model.FileHashInfo, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	limit := 8
	if h.pool != nil {
		limit = h.pool.WorkerCount()
	}
	g.SetLimit(limit)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := h.HashFile(p)
			if err != nil {
				return err
			}
			out[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
