package queue

import (
	"testing"
	"time"

	"github.com/dialogiot/foshgw/pkg/sensor"
)

func TestQueueFIFOPerProducer(t *testing.T) {
	q := New(10)
	r1 := sensor.Reading{Pressure: 1}
	r2 := sensor.Reading{Pressure: 2}

	q.Send(sensor.SensorEvent{Address: "a", Kind: sensor.Barometer, Reading: r1})
	q.Send(sensor.SensorEvent{Address: "a", Kind: sensor.Barometer, Reading: r2})

	first, ok := q.TryReceive(time.Second)
	if !ok || first.Reading.Pressure != 1 {
		t.Fatalf("expected first event with pressure 1, got %+v ok=%v", first, ok)
	}
	second, ok := q.TryReceive(time.Second)
	if !ok || second.Reading.Pressure != 2 {
		t.Fatalf("expected second event with pressure 2, got %+v ok=%v", second, ok)
	}
}

func TestQueueTryReceiveTimeout(t *testing.T) {
	q := New(1)
	start := time.Now()
	_, ok := q.TryReceive(50 * time.Millisecond)
	if ok {
		t.Fatalf("expected timeout on empty queue")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}
