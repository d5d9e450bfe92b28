// Package sync drains the offline operation queue against the store of
// record, one ordered lane per vehicle.
package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/kilianp07/fleetsync/core/events"
	"github.com/kilianp07/fleetsync/core/logger"
	"github.com/kilianp07/fleetsync/core/metrics"
	"github.com/kilianp07/fleetsync/core/model"
	"github.com/kilianp07/fleetsync/core/queue"
	"github.com/kilianp07/fleetsync/core/store"
	"github.com/kilianp07/fleetsync/internal/eventbus"
)

// Summary aggregates the outcomes of one drain cycle. A single bad
// operation never fails the batch; it only shows up in these counts.
type Summary struct {
	Applied   int
	Rejected  int
	Conflicts int
	Failed    int // terminal transient or permanent failures
	Retried   int // transient failures still eligible for retry
}

// Total returns the number of operations settled during the drain.
func (s Summary) Total() int {
	return s.Applied + s.Rejected + s.Conflicts + s.Failed + s.Retried
}

// Coordinator pulls batches from the queue and submits them to the
// store, strictly FIFO per vehicle, concurrently across vehicles.
type Coordinator struct {
	queue        queue.Queue
	store        store.Applier
	log          logger.Logger
	metrics      metrics.MetricsSink
	bus          eventbus.EventBus
	backoff      Backoff
	applyTimeout time.Duration
	batchSize    int
}

// NewCoordinator creates a coordinator. The metrics sink and bus may be
// nil; the queue, store and logger are required.
func NewCoordinator(q queue.Queue, st store.Applier, cfg Config, log logger.Logger, sink metrics.MetricsSink, bus eventbus.EventBus) *Coordinator {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Coordinator{
		queue:        q,
		store:        st,
		log:          log,
		metrics:      sink,
		bus:          bus,
		backoff:      Backoff{Base: time.Duration(cfg.RetryBaseSeconds) * time.Second, Max: time.Duration(cfg.RetryMaxSeconds) * time.Second},
		applyTimeout: time.Duration(cfg.ApplyTimeoutSeconds) * time.Second,
		batchSize:    cfg.BatchSize,
	}
}

// Drain processes one batch of pending operations. Lanes for different
// vehicles run in parallel; within a lane each operation waits for the
// previous result. Cancelling ctx stops new submissions but lets the
// in-flight ones finish, so no torn state is possible.
func (c *Coordinator) Drain(ctx context.Context) Summary {
	start := time.Now()
	batch, err := c.queue.PeekBatch(c.batchSize)
	if err != nil {
		c.log.Errorf("peek batch: %v", err)
		return Summary{}
	}
	if len(batch) == 0 {
		return Summary{}
	}

	lanes := partition(batch)
	c.log.Infof("draining %d operations across %d vehicles", len(batch), len(lanes))

	var (
		wg       stdsync.WaitGroup
		mu       stdsync.Mutex
		sum      Summary
		outcomes []metrics.SyncOutcome
	)
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o.class {
		case model.OutcomeApplied:
			sum.Applied++
		case model.OutcomeRejected:
			sum.Rejected++
		case model.OutcomeConflict:
			sum.Conflicts++
		case outcomeRetried:
			sum.Retried++
		default:
			sum.Failed++
		}
		outcomes = append(outcomes, metrics.SyncOutcome{
			VehicleID: o.vehicleID,
			Kind:      o.kind,
			Outcome:   string(o.class),
			Attempt:   o.attempt,
			Latency:   o.latency,
			Time:      time.Now(),
		})
	}

	for _, lane := range lanes {
		wg.Add(1)
		go func(ops []queue.PendingOperation) {
			defer wg.Done()
			for _, po := range ops {
				if ctx.Err() != nil {
					return // remaining ops stay pending for the next drain
				}
				o := c.process(ctx, po)
				record(o)
				if o.parksLane {
					return // preserve FIFO: later ops wait for a retry
				}
			}
		}(lane)
	}
	wg.Wait()

	if err := c.metrics.RecordSyncOutcomes(outcomes); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
	dur := time.Since(start)
	if err := c.metrics.RecordDrainSummary(metrics.DrainSummary{
		Applied: sum.Applied, Rejected: sum.Rejected, Conflicts: sum.Conflicts,
		Failed: sum.Failed, Retried: sum.Retried, Duration: dur, Time: time.Now(),
	}); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
	c.publish(events.DrainEvent{
		Applied: sum.Applied, Rejected: sum.Rejected, Conflicts: sum.Conflicts,
		Failed: sum.Failed, Retried: sum.Retried, Duration: dur, Time: time.Now(),
	})
	c.recordDepth()
	return sum
}

// outcomeRetried supplements the store outcomes for queue bookkeeping.
const outcomeRetried model.Outcome = "retried"
const outcomeFailed model.Outcome = "failed"

type outcome struct {
	class     model.Outcome
	vehicleID string
	kind      model.OperationKind
	attempt   int
	latency   time.Duration
	parksLane bool
}

// process settles a single queued operation and updates its queue entry.
func (c *Coordinator) process(ctx context.Context, po queue.PendingOperation) outcome {
	out := outcome{vehicleID: po.Op.VehicleID, kind: po.Op.Kind, attempt: po.AttemptCount}
	if err := c.queue.MarkInFlight(po.LocalID); err != nil {
		// Raced with another drain cycle or a terminal transition; skip.
		c.log.Warnf("op %d: mark in_flight: %v", po.LocalID, err)
		out.class = outcomeRetried
		return out
	}

	// The apply context is detached from drain cancellation: once a call
	// is in flight its result must be recorded.
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.applyTimeout)
	start := time.Now()
	res, err := c.store.Apply(applyCtx, po.Op)
	cancel()
	out.latency = time.Since(start)

	switch {
	case err == nil:
		c.settle(po, res, &out)
	case model.IsPermanent(err):
		out.class = outcomeFailed
		if qerr := c.queue.MarkRejected(po.LocalID, err.Error(), false); qerr != nil {
			c.log.Errorf("op %d: mark rejected: %v", po.LocalID, qerr)
		}
		c.log.Errorf("op %d (%s/%s): permanent failure: %v", po.LocalID, po.Op.VehicleID, po.Op.Kind, err)
	default:
		// Timeouts land here too: the store-side outcome is unknown, so
		// the retry reuses the same idempotency key.
		out.parksLane = true
		delay := c.backoff.Delay(po.AttemptCount)
		terminal, qerr := c.queue.MarkFailed(po.LocalID, err.Error(), time.Now().Add(delay))
		if qerr != nil {
			c.log.Errorf("op %d: mark failed: %v", po.LocalID, qerr)
		}
		if terminal {
			out.class = outcomeFailed
			c.log.Warnf("op %d (%s/%s): retry ceiling reached: %v", po.LocalID, po.Op.VehicleID, po.Op.Kind, err)
		} else {
			out.class = outcomeRetried
			c.log.Debugf("op %d: transient failure, retry in %s: %v", po.LocalID, delay, err)
		}
	}

	c.publish(events.SyncOutcomeEvent{
		LocalID:   po.LocalID,
		VehicleID: po.Op.VehicleID,
		Kind:      po.Op.Kind,
		Outcome:   string(out.class),
		Attempt:   po.AttemptCount,
		Time:      time.Now(),
	})
	return out
}

// settle records a decided store result in the queue.
func (c *Coordinator) settle(po queue.PendingOperation, res model.Result, out *outcome) {
	out.class = res.Outcome
	var err error
	switch res.Outcome {
	case model.OutcomeApplied:
		err = c.queue.MarkApplied(po.LocalID, res.RemoteID)
	case model.OutcomeConflict:
		err = c.queue.MarkRejected(po.LocalID, res.Reason, true)
		c.log.Warnf("op %d (%s/%s): conflict: %s", po.LocalID, po.Op.VehicleID, po.Op.Kind, res.Reason)
	default:
		err = c.queue.MarkRejected(po.LocalID, res.Reason, false)
		c.log.Warnf("op %d (%s/%s): rejected: %s", po.LocalID, po.Op.VehicleID, po.Op.Kind, res.Reason)
	}
	if err != nil {
		c.log.Errorf("op %d: queue update: %v", po.LocalID, err)
	}
}

func (c *Coordinator) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Coordinator) recordDepth() {
	qd, ok := c.metrics.(metrics.QueueDepthRecorder)
	if !ok {
		return
	}
	counts, err := c.queue.Counts()
	if err != nil {
		c.log.Errorf("queue counts: %v", err)
		return
	}
	if err := qd.RecordQueueDepth(counts.Pending+counts.InFlight, counts.Rejected+counts.Failed); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
}

// partition splits the batch into per-vehicle lanes preserving the FIFO
// order PeekBatch returned.
func partition(batch []queue.PendingOperation) map[string][]queue.PendingOperation {
	lanes := make(map[string][]queue.PendingOperation)
	for _, po := range batch {
		lanes[po.Op.VehicleID] = append(lanes[po.Op.VehicleID], po)
	}
	return lanes
}
