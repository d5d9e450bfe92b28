package metrics

import coremetrics "github.com/kilianp07/fleetsync/core/metrics"

// MultiSink fans sync records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSyncOutcomes forwards the records to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordSyncOutcomes(outcomes []coremetrics.SyncOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordSyncOutcomes(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordDrainSummary forwards the drain summary.
func (m *MultiSink) RecordDrainSummary(sum coremetrics.DrainSummary) error {
	for _, s := range m.Sinks {
		if err := s.RecordDrainSummary(sum); err != nil {
			return err
		}
	}
	return nil
}

// RecordQueueDepth forwards the queue depth to sinks that track it.
func (m *MultiSink) RecordQueueDepth(pending, terminal int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.QueueDepthRecorder); ok {
			if err := rec.RecordQueueDepth(pending, terminal); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConnectivity forwards reachability flips to sinks that track it.
func (m *MultiSink) RecordConnectivity(online bool) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ConnectivityRecorder); ok {
			if err := rec.RecordConnectivity(online); err != nil {
				return err
			}
		}
	}
	return nil
}
