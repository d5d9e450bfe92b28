package metrics

import (
	"time"

	"github.com/kilianp07/fleetsync/core/model"
)

// SyncOutcome represents the decided fate of one queued operation.
type SyncOutcome struct {
	VehicleID string
	Kind      model.OperationKind
	Outcome   string // applied, rejected, conflict, retried, failed
	Attempt   int
	Latency   time.Duration
	Time      time.Time
}

// DrainSummary aggregates one drain cycle.
type DrainSummary struct {
	Applied   int
	Rejected  int
	Conflicts int
	Failed    int
	Retried   int
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records sync outcomes for observability purposes.
type MetricsSink interface {
	RecordSyncOutcomes(outcomes []SyncOutcome) error
	RecordDrainSummary(sum DrainSummary) error
}

// QueueDepthRecorder is implemented by sinks able to track the offline
// queue depth.
type QueueDepthRecorder interface {
	RecordQueueDepth(pending, terminal int) error
}

// ConnectivityRecorder records online/offline transitions.
type ConnectivityRecorder interface {
	RecordConnectivity(online bool) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSyncOutcomes([]SyncOutcome) error { return nil }
func (NopSink) RecordDrainSummary(DrainSummary) error  { return nil }
func (NopSink) RecordQueueDepth(int, int) error        { return nil }
func (NopSink) RecordConnectivity(bool) error          { return nil }
