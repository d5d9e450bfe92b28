package metrics

import (
	"context"

	"github.com/kilianp07/fleetsync/core/events"
	coremetrics "github.com/kilianp07/fleetsync/core/metrics"
	"github.com/kilianp07/fleetsync/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics
// for connectivity flips. Sync outcomes are recorded directly by the
// coordinator; this covers the events it does not own. It stops when the
// context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.ConnectivityEvent); ok {
					if r, ok := sink.(coremetrics.ConnectivityRecorder); ok {
						_ = r.RecordConnectivity(e.Online)
					}
				}
			}
		}
	}()
}
