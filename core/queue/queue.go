// Package queue defines the durable client-side log of operations that
// have not yet been confirmed by the store of record.
package queue

import (
	"time"

	"github.com/kilianp07/fleetsync/core/model"
)

// Status is the lifecycle state of a queued operation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// PendingOperation is one queue entry. LocalID is assigned by the queue
// and increases monotonically per client; the embedded operation carries
// the idempotency key generated at enqueue time.
type PendingOperation struct {
	LocalID      int64
	Op           model.Operation
	Status       Status
	Conflict     bool // rejected due to a stale view rather than bad input
	AttemptCount int
	RemoteID     string
	LastError    string
	NextAttempt  time.Time // earliest eligible retry, zero when immediate
}

// Counts summarizes queue contents by status for surfacing to callers.
type Counts struct {
	Pending  int
	InFlight int
	Applied  int
	Rejected int
	Failed   int
}

// Queue is the durable offline operation log. Implementations must
// survive process restarts: a crash between Enqueue and MarkApplied
// leaves the entry recoverable as pending. Enqueue never blocks on the
// network; capture must work fully offline.
type Queue interface {
	// Enqueue appends op, assigns its idempotency key and returns the
	// local id.
	Enqueue(op model.Operation) (int64, error)
	// PeekBatch returns up to maxN retry-eligible pending entries, FIFO
	// within each vehicle.
	PeekBatch(maxN int) ([]PendingOperation, error)
	MarkInFlight(localID int64) error
	MarkApplied(localID int64, remoteID string) error
	// MarkRejected is terminal. conflict distinguishes a stale-view
	// rejection from a validation failure.
	MarkRejected(localID int64, reason string, conflict bool) error
	// MarkFailed increments the attempt count. Below the retry ceiling
	// the entry returns to pending, eligible again at nextAttempt; at
	// the ceiling it becomes terminally failed and terminal is true.
	MarkFailed(localID int64, reason string, nextAttempt time.Time) (terminal bool, err error)
	// RecoverInFlight returns entries stuck in_flight (crash mid-drain)
	// to pending.
	RecoverInFlight() (int, error)
	Counts() (Counts, error)
	// Terminal lists rejected and terminally failed entries so they can
	// be surfaced for correction or manual retry.
	Terminal() ([]PendingOperation, error)
	Close() error
}
