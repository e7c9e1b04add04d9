// Package queue provides the bounded, multi-producer/multi-consumer sensor
// event queue that carries decoded readings from Listeners to the
// Aggregator.
package queue

import (
	"time"

	"github.com/dialogiot/foshgw/pkg/sensor"
)

// DefaultCapacity sizes the queue so that a momentary Aggregator stall (up
// to one broadcast period) does not drop readings at steady state for a
// fleet of under 100 devices. It is deliberately generous relative to a
// single 0.25s broadcast period at typical accelerometer rates.
const DefaultCapacity = 4096

// Queue is a bounded FIFO channel of sensor.SensorEvent values. It is safe
// for concurrent use by any number of producers and consumers.
type Queue struct {
	ch chan sensor.SensorEvent
}

// New creates a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan sensor.SensorEvent, capacity)}
}

// Send enqueues an event, blocking if the queue is momentarily full. Callers
// (Listeners) are expected to block only briefly, since the Aggregator
// drains continuously except for its 1s poll timeout.
func (q *Queue) Send(event sensor.SensorEvent) {
	q.ch <- event
}

// TryReceive waits up to timeout for an event. The second return value is
// false on timeout, giving the Aggregator a polling point to check its stop
// flag without busy-waiting.
func (q *Queue) TryReceive(timeout time.Duration) (sensor.SensorEvent, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-q.ch:
		return event, true
	case <-timer.C:
		return sensor.SensorEvent{}, false
	}
}

// Len reports the number of events currently buffered, for diagnostics.
func (q *Queue) Len() int {
	return len(q.ch)
}
