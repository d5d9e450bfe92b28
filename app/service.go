// Package app wires the configured components into runnable services.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apisync "github.com/kilianp07/fleetsync/api/sync"
	"github.com/kilianp07/fleetsync/config"
	"github.com/kilianp07/fleetsync/core/connectivity"
	coremetrics "github.com/kilianp07/fleetsync/core/metrics"
	"github.com/kilianp07/fleetsync/core/model"
	corequeue "github.com/kilianp07/fleetsync/core/queue"
	"github.com/kilianp07/fleetsync/core/store"
	coresync "github.com/kilianp07/fleetsync/core/sync"
	infraconn "github.com/kilianp07/fleetsync/infra/connectivity"
	"github.com/kilianp07/fleetsync/infra/logger"
	"github.com/kilianp07/fleetsync/infra/metrics"
	"github.com/kilianp07/fleetsync/infra/queue"
	"github.com/kilianp07/fleetsync/infra/remote"
	"github.com/kilianp07/fleetsync/internal/eventbus"
)

// buildSink assembles the configured metrics sinks.
func buildSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

// Server hosts the store of record behind the HTTP apply boundary.
type Server struct {
	Store *store.MemoryStore
	cfg   *config.Config
	log   logger.Logger
}

// NewServer creates the store of record and seeds the configured fleet.
func NewServer(cfg *config.Config) (*Server, error) {
	st := store.NewMemoryStore()
	for _, v := range cfg.Fleet {
		if v.Status == "" {
			v.Status = model.StatusAvailable
		}
		if err := st.AddVehicle(v); err != nil {
			return nil, fmt.Errorf("seed vehicle %s: %w", v.ID, err)
		}
	}
	return &Server{Store: st, cfg: cfg, log: logger.New("server")}, nil
}

// Run serves the apply and read endpoints until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	mux := apisync.NewMux(s.Store, s.log)
	srv := &http.Server{Addr: s.cfg.Store.Listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("store listening on %s", s.cfg.Store.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Agent is the field client: durable queue, sync coordinator and
// connectivity monitor against a remote store.
type Agent struct {
	Queue       *queue.SQLiteQueue
	Coordinator *coresync.Coordinator
	Monitor     *connectivity.Monitor
	Remote      *remote.Client
	bus         eventbus.EventBus
	cfg         *config.Config
	log         logger.Logger
	mqttProbe   *infraconn.MQTTProbe
}

// NewAgent creates an agent from the configuration.
func NewAgent(cfg *config.Config) (*Agent, error) {
	log := logger.New("agent")
	if cfg.Store.RemoteURL == "" {
		return nil, fmt.Errorf("agent requires store.remote_url")
	}

	q, err := queue.NewSQLiteQueue(cfg.Queue.Path, cfg.Queue.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	client := remote.NewClient(cfg.Store.RemoteURL)

	sink, err := buildSink(cfg.Metrics)
	if err != nil {
		_ = q.Close()
		return nil, err
	}

	bus := eventbus.New()
	coord := coresync.NewCoordinator(q, client, cfg.Sync, logger.New("sync"), sink, bus)

	a := &Agent{Queue: q, Coordinator: coord, Remote: client, bus: bus, cfg: cfg, log: log}

	var prober connectivity.Prober
	switch cfg.Probe.Kind {
	case "mqtt":
		p, err := infraconn.NewMQTTProbe(cfg.Probe.MQTT)
		if err != nil {
			_ = q.Close()
			return nil, err
		}
		a.mqttProbe = p
		prober = p
	default:
		if cfg.Probe.URL != "" {
			prober = infraconn.NewHTTPProbe(cfg.Probe.URL)
		} else {
			prober = client
		}
	}
	a.Monitor = connectivity.NewMonitor(prober, coord, cfg.Connectivity, logger.New("connectivity"), bus)

	metrics.StartEventCollector(context.Background(), bus, sink)
	return a, nil
}

// capture appends an operation to the offline queue and nudges the
// monitor. It never touches the network.
func (a *Agent) capture(kind model.OperationKind, vehicleID, driver string, payload any) (int64, error) {
	op, err := model.NewOperation(kind, vehicleID, payload)
	if err != nil {
		return 0, err
	}
	op.Driver = driver
	id, err := a.Queue.Enqueue(op)
	if err != nil {
		return 0, err
	}
	a.Monitor.RequestDrain()
	return id, nil
}

// CaptureStartTrip queues a trip start at the given odometer reading.
func (a *Agent) CaptureStartTrip(vehicleID, driver string, odometerStart float64) (int64, error) {
	return a.capture(model.KindStartTrip, vehicleID, driver, model.StartTripPayload{OdometerStart: odometerStart})
}

// CaptureEndTrip queues a trip end. tripID may be empty; the store then
// resolves the vehicle's single open trip.
func (a *Agent) CaptureEndTrip(vehicleID, driver, tripID string, odometerEnd float64) (int64, error) {
	return a.capture(model.KindEndTrip, vehicleID, driver, model.EndTripPayload{TripID: tripID, OdometerEnd: odometerEnd})
}

// CaptureFuelLoad queues a refuel record.
func (a *Agent) CaptureFuelLoad(vehicleID, driver string, odometer, liters, price float64) (int64, error) {
	return a.capture(model.KindFuelLoad, vehicleID, driver, model.FuelLoadPayload{Odometer: odometer, Liters: liters, Price: price})
}

// Run recovers interrupted entries and monitors connectivity until the
// context is canceled.
func (a *Agent) Run(ctx context.Context) error {
	n, err := a.Queue.RecoverInFlight()
	if err != nil {
		return fmt.Errorf("recover queue: %w", err)
	}
	if n > 0 {
		a.log.Infof("recovered %d in-flight operations", n)
	}
	if a.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, a.cfg.Metrics.PrometheusPort, a.log); err != nil {
				a.log.Errorf("prom server: %v", err)
			}
		}()
	}
	a.Monitor.RequestDrain()
	a.Monitor.Run(ctx)
	return nil
}

// Close releases agent resources.
func (a *Agent) Close() error {
	if a.mqttProbe != nil {
		a.mqttProbe.Close()
	}
	a.bus.Close()
	return a.Queue.Close()
}

var (
	_ corequeue.Queue = (*queue.SQLiteQueue)(nil)
	_ store.Applier   = (*remote.Client)(nil)
)
