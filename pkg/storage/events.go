package storage

import (
	"time"

	"github.com/loreweave/loreweave/pkg/hashing"
)

// EventKind tags one lifecycle event of the store.
type EventKind string

const (
	EventBlockStored    EventKind = "block_stored"
	EventBlockRetrieved EventKind = "block_retrieved"
	EventBlockEvicted   EventKind = "block_evicted"
	EventBlockRemoved   EventKind = "block_removed"
	EventQuotaExceeded  EventKind = "quota_exceeded"
	EventTreeStored     EventKind = "tree_stored"
	EventTreeRemoved    EventKind = "tree_removed"
	EventMaintenance    EventKind = "maintenance"
	EventCleared        EventKind = "cleared"
	EventShutdown       EventKind = "shutdown"
)

// Event is one entry of the store's bounded event ring. Digest is set
// for block events, TreeID for tree events; Detail carries a count for
// maintenance events.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Digest    hashing.Digest `json:"digest,omitempty"`
	TreeID    string         `json:"tree_id,omitempty"`
	Detail    int            `json:"detail,omitempty"`
}
