package syncqueue

import (
	"encoding/json"
	"time"
)

// Kind identifies which delivery handler applies to an operation. The set
// is closed; Enqueue rejects kinds with no registered handler.
type Kind string

const (
	KindSendMessage    Kind = "send-message"
	KindCreateResource Kind = "create-resource"
	KindUpdateResource Kind = "update-resource"
	KindDeleteResource Kind = "delete-resource"
)

// Operation is a pending mutation awaiting delivery.
//
// An operation is never silently dropped: it exists in exactly one of three
// states - durably queued, delivered and removed, or permanently failed and
// retained with the Failed flag set. Attempts is the single authoritative
// retry counter; no separate bookkeeping map exists.
type Operation struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	LastAttemptAt time.Time       `json:"lastAttemptAt"`
	Attempts      int             `json:"attempts"`
	Failed        bool            `json:"failed,omitempty"`
}
