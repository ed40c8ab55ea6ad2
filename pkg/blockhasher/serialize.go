// Package blockhasher turns content blocks into digests: canonical
// serialization, single and batched hashing, Merkle tree construction,
// and whole-file digests.
package blockhasher

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/loreweave/loreweave/pkg/hashing"
	"github.com/loreweave/loreweave/pkg/model"
)

// MaxSerializedSize caps the canonical encoding of a single block at
// 10 MiB. Larger blocks are rejected rather than hashed; a parser that
// emits them should split first.
const MaxSerializedSize = 10 * 1024 * 1024

// encMode is the deterministic CBOR encoder shared by all hashing.
// Core deterministic encoding pins map key order and integer widths,
// so the same block always serializes to the same bytes on every
// platform. Anything else silently breaks content addressing.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("blockhasher: building deterministic CBOR encoder: " + err.Error())
	}
}

// blockEnvelope is the canonical hashing shape of a block. Field order
// is part of the wire contract: type, content, metadata, offsets.
// Renumbering the keys changes every digest ever produced.
type blockEnvelope struct {
	Type        model.BlockType `cbor:"1,keyasint"`
	Content     string          `cbor:"2,keyasint"`
	Metadata    model.Metadata  `cbor:"3,keyasint"`
	StartOffset int             `cbor:"4,keyasint"`
	EndOffset   int             `cbor:"5,keyasint"`
}

// Serialize returns the canonical byte encoding of a block, the exact
// bytes that get hashed. Returns *hashing.OversizeError when the
// encoding exceeds MaxSerializedSize.
func Serialize(b model.Block) ([]byte, error) {
	data, err := encMode.Marshal(blockEnvelope{
		Type:        b.Type,
		Content:     b.Content,
		Metadata:    b.Metadata,
		StartOffset: b.StartOffset,
		EndOffset:   b.EndOffset,
	})
	if err != nil {
		return nil, &hashing.SerializationError{Err: err}
	}
	if len(data) > MaxSerializedSize {
		return nil, &hashing.OversizeError{Size: len(data), Max: MaxSerializedSize}
	}
	return data, nil
}
