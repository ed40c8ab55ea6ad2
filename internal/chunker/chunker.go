// Package chunker slices non-document files into generic content
// blocks so binary attachments can flow through the same hashing and
// change-detection pipeline as parsed documents. Fixed-size splitting
// keeps block boundaries stable for append-only files; buzhash
// content-defined splitting keeps them stable under inserts.
package chunker

import (
	"fmt"
	"io"

	boxochunker "github.com/ipfs/boxo/chunker"

	"github.com/loreweave/loreweave/pkg/model"
)

// DefaultChunkSize is the fixed-size splitter's block size.
const DefaultChunkSize = 256 * 1024

// Mode selects the splitting strategy.
type Mode string

const (
	// FixedSize splits at DefaultChunkSize (or Config.ChunkSize)
	// boundaries.
	FixedSize Mode = "fixed"
	// Buzhash splits at content-defined boundaries.
	Buzhash Mode = "buzhash"
)

// Config configures a chunking run. The zero value selects fixed-size
// splitting at DefaultChunkSize.
type Config struct {
	Mode      Mode
	ChunkSize int64
}

// Chunk reads r to EOF and returns one generic block per chunk, with
// offsets covering the byte span of each chunk in the source.
func Chunk(r io.Reader, cfg Config) ([]model.Block, error) {
	var splitter boxochunker.Splitter
	switch cfg.Mode {
	case Buzhash:
		splitter = boxochunker.NewBuzhash(r)
	case FixedSize, "":
		size := cfg.ChunkSize
		if size <= 0 {
			size = DefaultChunkSize
		}
		splitter = boxochunker.NewSizeSplitter(r, size)
	default:
		return nil, fmt.Errorf("chunker: unknown mode %q", cfg.Mode)
	}

	var blocks []model.Block
	offset := 0
	for {
		chunk, err := splitter.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chunker: reading chunk %d: %w", len(blocks), err)
		}
		end := offset + len(chunk)
		blocks = append(blocks, model.NewBlock(
			model.BlockGeneric,
			string(chunk),
			offset,
			end,
			model.GenericMetadata(),
		))
		offset = end
	}
	return blocks, nil
}
