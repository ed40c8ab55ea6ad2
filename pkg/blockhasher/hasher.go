package blockhasher

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/merkle"
	"github.com/loreweave/loreweave/pkg/model"
	"github.com/loreweave/loreweave/pkg/workerpool"
)

// Config wires a BlockHasher. Algorithm "" selects BLAKE3. Pool may be
// nil, in which case batches are hashed on the calling goroutine.
type Config struct {
	Algorithm string
	Pool      *workerpool.Pool
	Logger    *logrus.Logger
}

// BlockHasher computes content digests for blocks. Safe for concurrent
// use; it carries no per-call state.
type BlockHasher struct {
	alg  hashing.Algorithm
	pool *workerpool.Pool
	log  *logrus.Logger
}

// New creates a BlockHasher from the config.
func New(cfg Config) (*BlockHasher, error) {
	alg, err := hashing.New(cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("blockhasher: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return &BlockHasher{alg: alg, pool: cfg.Pool, log: log}, nil
}

// Algorithm returns the configured digest algorithm.
func (h *BlockHasher) Algorithm() hashing.Algorithm { return h.alg }

// HashBlock serializes the block canonically and digests the bytes.
// Two blocks with equal content but different metadata or offsets
// produce different digests.
func (h *BlockHasher) HashBlock(b model.Block) (hashing.Digest, error) {
	data, err := Serialize(b)
	if err != nil {
		return hashing.Digest{}, err
	}
	return h.alg.Hash(data), nil
}

// HashBlocks digests a batch, returning digests in input order:
// result[i] is always the digest of blocks[i]. Batches of at least
// parallelThreshold blocks fan out over the worker pool; the first
// failing block aborts the batch.
func (h *BlockHasher) HashBlocks(blocks []model.Block) ([]hashing.Digest, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	const parallelThreshold = 16
	if h.pool == nil || len(blocks) < parallelThreshold {
		out := make([]hashing.Digest, len(blocks))
		for i, b := range blocks {
			d, err := h.HashBlock(b)
			if err != nil {
				return nil, fmt.Errorf("blockhasher: block %d: %w", i, err)
			}
			out[i] = d
		}
		return out, nil
	}

	room := h.pool.NewRoom(len(blocks))
	for i, b := range blocks {
		i, b := i, b
		room.Submit(i, func() (interface{}, error) {
			d, err := h.HashBlock(b)
			if err != nil {
				return nil, fmt.Errorf("blockhasher: block %d: %w", i, err)
			}
			return d, nil
		})
	}

	results, err := room.Collect()
	if err != nil {
		return nil, err
	}
	out := make([]hashing.Digest, len(results))
	for i, r := range results {
		out[i] = r.(hashing.Digest)
	}

	h.log.WithFields(logrus.Fields{
		"blocks":    len(blocks),
		"algorithm": h.alg.Name(),
	}).Debug("hashed block batch")
	return out, nil
}

// HashBlockInfo digests the block and packages the digest with its
// type, span, and algorithm name for storage in a hash catalog.
func (h *BlockHasher) HashBlockInfo(b model.Block) (model.BlockHashInfo, error) {
	d, err := h.HashBlock(b)
	if err != nil {
		return model.BlockHashInfo{}, err
	}
	return model.BlockHashInfo{
		Digest:      d,
		BlockType:   b.Type,
		StartOffset: b.StartOffset,
		EndOffset:   b.EndOffset,
		Algorithm:   h.alg.Name(),
	}, nil
}

// VerifyBlockHash recomputes the block's digest and compares it to
// expected. A block that cannot be serialized verifies as false
// rather than returning an error; an unhashable block cannot match
// any digest.
func (h *BlockHasher) VerifyBlockHash(b model.Block, expected hashing.Digest) bool {
	d, err := h.HashBlock(b)
	if err != nil {
		return false
	}
	return d == expected
}

// BuildTree hashes the blocks and assembles the digests into a Merkle
// tree. Empty input returns merkle.ErrEmptyInput.
func (h *BlockHasher) BuildTree(blocks []model.Block) (*merkle.Tree, error) {
	digests, err := h.HashBlocks(blocks)
	if err != nil {
		return nil, err
	}
	return merkle.Build(digests, h.alg)
}
