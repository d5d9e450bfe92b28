// Package events defines the payloads published on the internal event bus
// so UIs and reporting features can follow sync progress without polling.
package events

import (
	"time"

	"github.com/kilianp07/fleetsync/core/model"
)

// SyncOutcomeEvent is published for every queued operation the
// coordinator settles during a drain.
type SyncOutcomeEvent struct {
	LocalID   int64
	VehicleID string
	Kind      model.OperationKind
	Outcome   string
	Reason    string
	Attempt   int
	Time      time.Time
}

// DrainEvent is published once per drain cycle with aggregate counts.
type DrainEvent struct {
	Applied   int
	Rejected  int
	Conflicts int
	Failed    int
	Retried   int
	Duration  time.Duration
	Time      time.Time
}

// ConnectivityEvent is published when the monitor flips between online
// and offline.
type ConnectivityEvent struct {
	Online bool
	Time   time.Time
}
