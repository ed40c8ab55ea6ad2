package blockhasher

import "github.com/loreweave/loreweave/pkg/model"

// BatchStats summarizes one batch of blocks before or after hashing.
type BatchStats struct {
	TotalBlocks      int
	EmptyBlocks      int
	TotalContent     int
	TotalSpan        int
	AvgContentLength float64
	AvgSpanLength    float64
	BlocksByType     map[model.BlockType]int
}

// AnalyzeBatch computes summary statistics over a batch without
// hashing it.
func AnalyzeBatch(blocks []model.Block) BatchStats {
	s := BatchStats{
		TotalBlocks:  len(blocks),
		BlocksByType: make(map[model.BlockType]int),
	}
	for i := range blocks {
		b := &blocks[i]
		if b.IsEmpty() {
			s.EmptyBlocks++
		}
		s.TotalContent += len(b.Content)
		s.TotalSpan += b.SpanLength()
		s.BlocksByType[b.Type]++
	}
	if s.TotalBlocks > 0 {
		s.AvgContentLength = float64(s.TotalContent) / float64(s.TotalBlocks)
		s.AvgSpanLength = float64(s.TotalSpan) / float64(s.TotalBlocks)
	}
	return s
}
