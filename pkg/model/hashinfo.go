package model

import (
	"time"

	"github.com/loreweave/loreweave/pkg/hashing"
)

// BlockHashInfo packages a block's digest with the context needed to
// use it without the block itself: type, source span, and the
// algorithm that produced it.
type BlockHashInfo struct {
	Digest      hashing.Digest `cbor:"1,keyasint"`
	BlockType   BlockType      `cbor:"2,keyasint"`
	StartOffset int            `cbor:"3,keyasint"`
	EndOffset   int            `cbor:"4,keyasint"`
	Algorithm   string         `cbor:"5,keyasint"`
}

// ContentLength returns the number of source bytes the hashed block
// covered.
func (i BlockHashInfo) ContentLength() int {
	if i.EndOffset < i.StartOffset {
		return 0
	}
	return i.EndOffset - i.StartOffset
}

// FileHashInfo is the whole-file analogue: one digest per file, plus
// the filesystem metadata change detection reasons about.
type FileHashInfo struct {
	Path       string         `cbor:"1,keyasint"`
	Digest     hashing.Digest `cbor:"2,keyasint"`
	Size       int64          `cbor:"3,keyasint"`
	ModifiedAt time.Time      `cbor:"4,keyasint"`
	Algorithm  string         `cbor:"5,keyasint"`
}
