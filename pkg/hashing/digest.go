// Package hashing provides the digest value type and the pluggable
// hashing algorithms used for content addressing. All algorithms
// produce 32-byte digests; the length is fixed at compile time so that
// digests can be used directly as map keys and array-backed values
// without runtime length checks.
package hashing

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DigestLength is the size in bytes of every digest produced by the
// algorithms in this package.
const DigestLength = 32

// Digest is a fixed-length content hash. It is a value type: equality
// is byte-exact comparison and the zero value is all zeros.
type Digest [DigestLength]byte

// Hex returns the lowercase hex encoding of the digest. This is the
// canonical textual form used in logs and catalog records.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether the digest is the all-zero value. A zero
// digest never results from hashing actual content and indicates an
// unset field.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalCBOR implements cbor.Marshaler. Digests encode as CBOR byte
// strings rather than arrays of integers, which keeps catalog records
// and snapshots compact.
func (d Digest) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(d[:])
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (d *Digest) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding digest: %w", err)
	}
	if len(raw) != DigestLength {
		return &DigestLengthError{Got: len(raw)}
	}
	copy(d[:], raw)
	return nil
}

// ParseDigest parses a lowercase or uppercase hex string into a
// Digest. Returns a DigestLengthError if the decoded value is not
// exactly DigestLength bytes.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(raw) != DigestLength {
		return d, &DigestLengthError{Got: len(raw)}
	}
	copy(d[:], raw)
	return d, nil
}
