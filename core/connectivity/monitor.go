// Package connectivity watches transport reachability to the store of
// record and triggers queue drains on offline-to-online transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/fleetsync/core/events"
	"github.com/kilianp07/fleetsync/core/logger"
	coresync "github.com/kilianp07/fleetsync/core/sync"
	"github.com/kilianp07/fleetsync/internal/eventbus"
)

// State is the debounced reachability state.
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Prober checks reachability of the store of record. A nil error means
// reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Drainer is the subset of the sync coordinator the monitor drives.
type Drainer interface {
	Drain(ctx context.Context) coresync.Summary
}

// Config defines probe cadence and debouncing.
type Config struct {
	ProbeIntervalSeconds int `json:"probe_interval_seconds"`
	ProbeTimeoutSeconds  int `json:"probe_timeout_seconds"`
	DrainIntervalSeconds int `json:"drain_interval_seconds"`
	// DebounceCount is the number of consecutive agreeing probes needed
	// to flip the state.
	DebounceCount int `json:"debounce_count"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.ProbeIntervalSeconds == 0 {
		c.ProbeIntervalSeconds = 10
	}
	if c.ProbeTimeoutSeconds == 0 {
		c.ProbeTimeoutSeconds = 5
	}
	if c.DrainIntervalSeconds == 0 {
		c.DrainIntervalSeconds = 60
	}
	if c.DebounceCount == 0 {
		c.DebounceCount = 2
	}
}

// Monitor debounces probe results and serializes drains: at most one
// drain runs at a time, and a trigger during a running drain coalesces
// into a single follow-up run.
type Monitor struct {
	prober  Prober
	drainer Drainer
	log     logger.Logger
	bus     eventbus.EventBus
	cfg     Config

	mu     sync.Mutex
	state  State
	streak int
	subs   []func(State)

	drainReq chan struct{}
}

// NewMonitor creates a monitor. The initial state is offline until
// probes prove otherwise.
func NewMonitor(p Prober, d Drainer, cfg Config, log logger.Logger, bus eventbus.EventBus) *Monitor {
	cfg.SetDefaults()
	return &Monitor{
		prober:   p,
		drainer:  d,
		log:      log,
		bus:      bus,
		cfg:      cfg,
		state:    Offline,
		drainReq: make(chan struct{}, 1),
	}
}

// State returns the current debounced state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a callback invoked on every state change, so a UI
// can reflect sync status without polling internals.
func (m *Monitor) Subscribe(cb func(State)) {
	m.mu.Lock()
	m.subs = append(m.subs, cb)
	m.mu.Unlock()
}

// RequestDrain schedules a drain. If one is already running, the request
// coalesces into a single run after the current one completes.
func (m *Monitor) RequestDrain() {
	select {
	case m.drainReq <- struct{}{}:
	default:
	}
}

// Run probes and drains until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	go m.drainLoop(ctx)

	probeTick := time.NewTicker(time.Duration(m.cfg.ProbeIntervalSeconds) * time.Second)
	defer probeTick.Stop()
	drainTick := time.NewTicker(time.Duration(m.cfg.DrainIntervalSeconds) * time.Second)
	defer drainTick.Stop()

	m.probeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTick.C:
			m.probeOnce(ctx)
		case <-drainTick.C:
			if m.State() == Online {
				m.RequestDrain()
			}
		}
	}
}

// drainLoop is the single worker that executes drains. Requests arriving
// while offline are dropped: draining would only burn retry attempts, and
// the online transition schedules a fresh drain anyway.
func (m *Monitor) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.drainReq:
			if m.State() != Online {
				continue
			}
			sum := m.drainer.Drain(ctx)
			if sum.Total() > 0 {
				m.log.Infof("drain done: applied=%d rejected=%d conflicts=%d failed=%d retried=%d",
					sum.Applied, sum.Rejected, sum.Conflicts, sum.Failed, sum.Retried)
			}
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.ProbeTimeoutSeconds)*time.Second)
	err := m.prober.Probe(probeCtx)
	cancel()
	if err != nil {
		m.log.Debugf("probe failed: %v", err)
	}
	m.observe(err == nil)
}

// observe feeds one probe result into the debouncer and fires the
// transition actions when the state flips.
func (m *Monitor) observe(online bool) {
	target := Offline
	if online {
		target = Online
	}

	m.mu.Lock()
	if target == m.state {
		m.streak = 0
		m.mu.Unlock()
		return
	}
	m.streak++
	if m.streak < m.cfg.DebounceCount {
		m.mu.Unlock()
		return
	}
	m.state = target
	m.streak = 0
	subs := make([]func(State), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.log.Infof("connectivity: %s", target)
	if m.bus != nil {
		m.bus.Publish(events.ConnectivityEvent{Online: online, Time: time.Now()})
	}
	for _, cb := range subs {
		cb(target)
	}
	if target == Online {
		m.RequestDrain()
	}
}
