package streamsvc

import (
	"sync"

	"github.com/dialogiot/foshgw/pkg/broadcaster"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/metrics"
	"github.com/google/uuid"
)

// subscriberQueueCapacity bounds the per-subscriber fanout buffer. A
// subscriber that cannot keep up has each new event dropped while its
// buffer is full, rather than stalling the broadcast loop (spec §4.6, "a slow subscriber
// must never block the publish cadence").
const subscriberQueueCapacity = 8

type subscriber struct {
	id     uuid.UUID
	events chan broadcaster.OutputEvent
}

// BroadcastSubscriberSet is the non-blocking fanout hub between the
// Broadcaster and every connected ReadSensorStream subscriber. It
// implements broadcaster.Sink.
type BroadcastSubscriberSet struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber
	log         *logger.Logger
}

// NewBroadcastSubscriberSet creates an empty subscriber set.
func NewBroadcastSubscriberSet(log *logger.Logger) *BroadcastSubscriberSet {
	return &BroadcastSubscriberSet{
		subscribers: make(map[uuid.UUID]*subscriber),
		log:         log.Component("streamsvc"),
	}
}

// Subscribe registers a new subscriber and returns its id and event
// channel. The caller (the gRPC handler goroutine for one stream) reads
// from the channel and forwards each event via stream.Send.
func (b *BroadcastSubscriberSet) Subscribe() (uuid.UUID, <-chan broadcaster.OutputEvent) {
	id := uuid.New()
	sub := &subscriber{id: id, events: make(chan broadcaster.OutputEvent, subscriberQueueCapacity)}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	metrics.SubscribersConnected.Set(float64(b.count()))
	return id, sub.events
}

// Unsubscribe removes id, called once its stream.Send loop observes a send
// failure or the client disconnects (spec §4.6's open question on pruning,
// resolved by detecting the failure at send time rather than proactively
// pinging subscribers).
func (b *BroadcastSubscriberSet) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.events)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	metrics.SubscribersConnected.Set(float64(b.count()))
}

// SubscribersConnected returns the current subscriber count, for the admin
// /healthz endpoint.
func (b *BroadcastSubscriberSet) SubscribersConnected() int {
	return b.count()
}

func (b *BroadcastSubscriberSet) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// AddEvent fans event out to every current subscriber without blocking. A
// subscriber whose buffer is full has this event dropped for it; the events
// already buffered for it are kept.
func (b *BroadcastSubscriberSet) AddEvent(event broadcaster.OutputEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.events <- event:
		default:
			metrics.FanoutDrops.Inc()
		}
	}
}
