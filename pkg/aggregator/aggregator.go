// Package aggregator implements C5: the latest-value-per-sensor state table
// that the Sensor Queue feeds and the Broadcaster snapshots (spec §4.5).
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// pollInterval is how often the consume loop polls the queue for new
// events when none are immediately available.
const pollInterval = 1 * time.Second

// Aggregator holds, per device address, the most recent Reading seen for
// each sensor kind. It never drops state itself; only GetState clears it
// (spec §4.5, "aggregator state is read-and-cleared by the broadcaster").
type Aggregator struct {
	q   *queue.Queue
	log *logger.Logger

	mu    sync.Mutex
	state map[sensor.Address]map[sensor.Kind]sensor.Reading

	done chan struct{}
}

// New creates an Aggregator that will consume from q once Run is called.
func New(q *queue.Queue, log *logger.Logger) *Aggregator {
	return &Aggregator{
		q:     q,
		log:   log.Component("aggregator"),
		state: make(map[sensor.Address]map[sensor.Kind]sensor.Reading),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled, folding each event into the
// latest-value state table.
func (a *Aggregator) Run(ctx context.Context) {
	defer close(a.done)
	for {
		if ctx.Err() != nil {
			return
		}
		evt, ok := a.q.TryReceive(pollInterval)
		if !ok {
			continue
		}
		a.apply(evt)
	}
}

// Stop waits for Run to observe its context cancellation and return.
func (a *Aggregator) Stop() {
	<-a.done
}

func (a *Aggregator) apply(evt sensor.SensorEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKind, ok := a.state[evt.Address]
	if !ok {
		byKind = make(map[sensor.Kind]sensor.Reading)
		a.state[evt.Address] = byKind
	}
	byKind[evt.Kind] = evt.Reading
}

// DeviceState is one device's latest readings across every sensor kind that
// has reported since the last GetState call.
type DeviceState struct {
	Address  sensor.Address
	Readings map[sensor.Kind]sensor.Reading
}

// GetState returns a snapshot of every device's current state and clears
// the table, so the next snapshot only reflects readings received since
// this call (spec §4.5 step 1, "read-and-clear").
func (a *Aggregator) GetState() []DeviceState {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]DeviceState, 0, len(a.state))
	for addr, byKind := range a.state {
		out = append(out, DeviceState{Address: addr, Readings: byKind})
	}
	a.state = make(map[sensor.Address]map[sensor.Kind]sensor.Reading)
	return out
}
