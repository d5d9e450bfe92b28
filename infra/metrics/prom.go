package metrics

import (
	coremetrics "github.com/kilianp07/fleetsync/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records sync outcomes in Prometheus metrics.
type PromSink struct {
	outcomes *prometheus.CounterVec
	drains   prometheus.Histogram
	pending  prometheus.Gauge
	terminal prometheus.Gauge
	online   prometheus.Gauge
}

// NewPromSink registers sync metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_operations_total",
		Help: "Total number of queued operations settled, by outcome",
	}, []string{"vehicle_id", "kind", "outcome"})
	drains := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_drain_duration_seconds",
		Help:    "Duration of queue drain cycles",
		Buckets: prometheus.DefBuckets,
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_pending",
		Help: "Operations waiting in the offline queue",
	})
	terminal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_terminal",
		Help: "Rejected or terminally failed operations awaiting user action",
	})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_online",
		Help: "1 when the store of record is reachable",
	})

	s := &PromSink{outcomes: outcomes, drains: drains, pending: pending, terminal: terminal, online: online}
	for _, c := range []prometheus.Collector{outcomes, drains, pending, terminal, online} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordSyncOutcomes increments the outcome counter per operation.
func (s *PromSink) RecordSyncOutcomes(outcomes []coremetrics.SyncOutcome) error {
	for _, o := range outcomes {
		s.outcomes.WithLabelValues(o.VehicleID, string(o.Kind), o.Outcome).Inc()
	}
	return nil
}

// RecordDrainSummary observes the drain duration.
func (s *PromSink) RecordDrainSummary(sum coremetrics.DrainSummary) error {
	s.drains.Observe(sum.Duration.Seconds())
	return nil
}

// RecordQueueDepth sets the queue gauges.
func (s *PromSink) RecordQueueDepth(pending, terminal int) error {
	s.pending.Set(float64(pending))
	s.terminal.Set(float64(terminal))
	return nil
}

// RecordConnectivity sets the reachability gauge.
func (s *PromSink) RecordConnectivity(online bool) error {
	if online {
		s.online.Set(1)
	} else {
		s.online.Set(0)
	}
	return nil
}
