package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/dialogiot/foshgw/pkg/aggregator"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

type fakeSink struct {
	events chan OutputEvent
}

func newFakeSink() *fakeSink { return &fakeSink{events: make(chan OutputEvent, 8)} }

func (f *fakeSink) AddEvent(e OutputEvent) { f.events <- e }

func testLogger() *logger.Logger { return logger.New(logger.Config{Level: "debug", Format: "text"}) }

func TestBroadcasterPublishesSortedDevicesOnPeriod(t *testing.T) {
	q := queue.New(queue.DefaultCapacity)
	agg := aggregator.New(q, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	q.Send(sensor.SensorEvent{Address: "80:EA:CA:00:00:02", Kind: sensor.Barometer, Reading: sensor.Reading{Pressure: 1000}})
	q.Send(sensor.SensorEvent{Address: "80:EA:CA:00:00:01", Kind: sensor.Accelerometer, Reading: sensor.Reading{Vector: sensor.Vector3{X: 1}}})

	time.Sleep(50 * time.Millisecond)

	sink := newFakeSink()
	b := New(agg, sink, 20*time.Millisecond, testLogger())

	bctx, bcancel := context.WithCancel(context.Background())
	go b.Run(bctx)
	defer bcancel()

	select {
	case evt := <-sink.events:
		if len(evt.Devices) != 2 {
			t.Fatalf("expected 2 devices in broadcast, got %d", len(evt.Devices))
		}
		if evt.Devices[0].Address != "80:EA:CA:00:00:01" || evt.Devices[1].Address != "80:EA:CA:00:00:02" {
			t.Fatalf("expected devices sorted by address, got %v, %v", evt.Devices[0].Address, evt.Devices[1].Address)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestBroadcasterPublishesEmptySnapshotWhenNothingReported(t *testing.T) {
	q := queue.New(queue.DefaultCapacity)
	agg := aggregator.New(q, testLogger())

	sink := newFakeSink()
	b := New(agg, sink, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	defer cancel()

	select {
	case evt := <-sink.events:
		if len(evt.Devices) != 0 {
			t.Fatalf("expected empty broadcast, got %d devices", len(evt.Devices))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}
