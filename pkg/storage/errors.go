package storage

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation after Shutdown.
var ErrClosed = errors.New("storage: store is shut down")

// QuotaExceededError is returned when storing a block would exceed the
// memory limit and eviction could not free enough space (or eviction
// is disabled). The write is rejected; existing data is untouched.
type QuotaExceededError struct {
	Needed uint64
	Used   uint64
	Limit  uint64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage: memory quota exceeded: need %d bytes, %d of %d in use", e.Needed, e.Used, e.Limit)
}

// SnapshotError wraps a failure while writing or reading a snapshot
// stream.
type SnapshotError struct {
	Op  string // "encode", "decode", "compress", "decompress"
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("storage: snapshot %s: %v", e.Op, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }
