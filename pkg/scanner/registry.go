package scanner

import (
	"sync"
	"time"

	"github.com/dialogiot/foshgw/pkg/listener"
	"github.com/dialogiot/foshgw/pkg/metrics"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// Registry tracks at most one live Listener per device address (spec §4.4,
// "Listener registry"). A dead entry is reaped and its slot freed the next
// time the sweep loop observes it, so a device that drops and re-advertises
// gets a fresh Listener rather than being ignored forever.
type Registry struct {
	mu        sync.Mutex
	listeners map[sensor.Address]*listener.Listener
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[sensor.Address]*listener.Listener)}
}

// IsLive reports whether address already has a live Listener registered.
func (r *Registry) IsLive(address sensor.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listeners[address]
	return ok && l.IsLive()
}

// Register installs l as address's Listener, replacing any prior (now-dead)
// entry.
func (r *Registry) Register(address sensor.Address, l *listener.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[address] = l
}

// Recycle terminates and removes address's existing entry, if any, so the
// Scanner can register a fresh Listener in its place. Rediscovery of an
// address already in the registry is not a no-op (spec §4.4 step 4): the
// existing Listener is terminated first, then dispatch proceeds as for a
// new address.
func (r *Registry) Recycle(address sensor.Address, grace time.Duration) {
	r.mu.Lock()
	l, ok := r.listeners[address]
	if ok {
		delete(r.listeners, address)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	l.Terminate(grace)
	metrics.ListenerTerminations.WithLabelValues(metrics.ReasonRecycled).Inc()
}

// Reap removes every registered Listener that is no longer live, returning
// how many were removed. The Scanner calls this each sweep so registry size
// stays bounded by currently-connected devices, not every device ever seen.
func (r *Registry) Reap(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for addr, l := range r.listeners {
		if l.IsLive() {
			continue
		}
		l.Terminate(grace)
		delete(r.listeners, addr)
		removed++
	}
	return removed
}

// Len returns the number of currently-registered (not necessarily live)
// entries. Exposed for tests and metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// ListenersActive returns the number of currently-live Listeners, for the
// admin /healthz endpoint.
func (r *Registry) ListenersActive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.listeners {
		if l.IsLive() {
			n++
		}
	}
	return n
}

// TerminateAll terminates every registered Listener, used during Supervisor
// shutdown.
func (r *Registry) TerminateAll(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, l := range r.listeners {
		l.Terminate(grace)
		delete(r.listeners, addr)
	}
}
