package hashing

import "fmt"

// DigestLengthError reports a digest whose byte length does not match
// DigestLength. With fixed-size Digest values this can only come from
// external input (hex strings, decoded records), so it is input
// validation there and an invariant guard everywhere else.
type DigestLengthError struct {
	Got int
}

func (e *DigestLengthError) Error() string {
	return fmt.Sprintf("digest is %d bytes, want %d", e.Got, DigestLength)
}

// SerializationError reports a block that could not be canonically
// encoded for hashing.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing block for hashing: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// OversizeError reports a block whose canonical serialization exceeds
// the configured cap. The cap bounds worst-case memory during hashing;
// blocks this large indicate parser misbehavior upstream.
type OversizeError struct {
	Size int
	Max  int
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("serialized block is %d bytes, cap is %d", e.Size, e.Max)
}
