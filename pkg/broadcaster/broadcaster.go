// Package broadcaster implements C6: the fixed-period loop that snapshots
// the Aggregator and hands the assembled OutputEvent to the Stream Service
// (spec §4.5/§4.6).
package broadcaster

import (
	"context"
	"sort"
	"time"

	"github.com/dialogiot/foshgw/pkg/aggregator"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/metrics"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// DeviceReading is one device's per-sensor readings in an OutputEvent.
type DeviceReading struct {
	Address  sensor.Address
	Readings map[sensor.Kind]sensor.Reading
}

// OutputEvent is one broadcast snapshot: a wall-clock timestamp plus every
// device that reported since the previous broadcast, in address-sorted
// order for a deterministic wire encoding (spec §4.6).
type OutputEvent struct {
	Timestamp time.Time
	Devices   []DeviceReading
}

// Sink accepts a completed OutputEvent. *streamsvc.BroadcastSubscriberSet
// implements it; the interface lives here so broadcaster does not import
// streamsvc, keeping the dependency direction one-way.
type Sink interface {
	AddEvent(OutputEvent)
}

// Broadcaster runs the fixed-period publish loop.
type Broadcaster struct {
	agg    *aggregator.Aggregator
	sink   Sink
	period time.Duration
	log    *logger.Logger
}

// New creates a Broadcaster that snapshots agg every period and hands the
// result to sink.
func New(agg *aggregator.Aggregator, sink Sink, period time.Duration, log *logger.Logger) *Broadcaster {
	return &Broadcaster{agg: agg, sink: sink, period: period, log: log.Component("broadcaster")}
}

// Run publishes until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publishOnce()
		}
	}
}

func (b *Broadcaster) publishOnce() {
	start := time.Now()
	state := b.agg.GetState()

	devices := make([]DeviceReading, 0, len(state))
	for _, d := range state {
		devices = append(devices, DeviceReading{Address: d.Address, Readings: d.Readings})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })

	event := OutputEvent{Timestamp: start, Devices: devices}
	b.sink.AddEvent(event)

	metrics.BroadcastDevices.Observe(float64(len(devices)))
	metrics.BroadcastBuildSeconds.Observe(time.Since(start).Seconds())
	b.log.Debug("published broadcast", "devices", len(devices))
}
