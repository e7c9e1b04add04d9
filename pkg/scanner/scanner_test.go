package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dialogiot/foshgw/pkg/ble"
	"github.com/dialogiot/foshgw/pkg/listener"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// fakeDevice never errors and never notifies; it only needs to satisfy
// ble.Device so a dispatched Listener can run to the watchdog.
type fakeDevice struct{}

func (fakeDevice) Connect(context.Context, sensor.Address) error { return nil }
func (fakeDevice) GetConfig() (ble.DeviceConfig, error)           { return ble.DesiredConfig(), nil }
func (fakeDevice) SetConfig(ble.DeviceConfig, bool) error         { return nil }
func (fakeDevice) Subscribe(string, ble.NotificationHandler) error { return nil }
func (fakeDevice) Start() error                                   { return nil }
func (fakeDevice) Disconnect() error                              { return nil }

// fakeAdapter is both a Scannable (returns a fixed set of advertisements
// once, then none) and a DeviceFactory.
type fakeAdapter struct {
	mu        sync.Mutex
	addresses []sensor.Address
	served    bool
	findCalls int
}

func (a *fakeAdapter) Find(ctx context.Context, timeout time.Duration) ([]ble.DiscoveredDevice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findCalls++
	if a.served {
		return nil, nil
	}
	a.served = true
	out := make([]ble.DiscoveredDevice, len(a.addresses))
	for i, addr := range a.addresses {
		out[i] = ble.DiscoveredDevice{Address: addr}
	}
	return out, nil
}

func (a *fakeAdapter) NewDevice() ble.Device { return fakeDevice{} }

// fakePool hands out a fixed set of adapters round-robin and records which
// adapter each Next() call returned, for the round-robin assertion.
type fakePool struct {
	mu       sync.Mutex
	adapters []*fakeAdapter
	next     int
	assigned []*fakeAdapter
}

func (p *fakePool) Next() (ble.DeviceFactory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.adapters[p.next%len(p.adapters)]
	p.next++
	p.assigned = append(p.assigned, a)
	return a, nil
}

func (p *fakePool) Any() (ble.Scannable, error) {
	return p.adapters[0], nil
}

func testLogger() *logger.Logger { return logger.New(logger.Config{Level: "debug", Format: "text"}) }

func testConfig() Config {
	return Config{
		AddressPrefix:          "80:EA:CA:",
		ScanInterval:           10 * time.Millisecond,
		ScanIdleInterval:       10 * time.Millisecond,
		ListenerTerminateGrace: 200 * time.Millisecond,
		ListenerConfig:         listener.Config{WatchdogTimeout: 50 * time.Millisecond, PersistDeviceEEPROM: true},
	}
}

func TestScannerFiltersByAddressPrefix(t *testing.T) {
	adapter := &fakeAdapter{addresses: []sensor.Address{"80:EA:CA:00:00:01", "AA:BB:CC:00:00:02"}}
	pool := &fakePool{adapters: []*fakeAdapter{adapter}}
	registry := NewRegistry()
	q := queue.New(queue.DefaultCapacity)

	s := New(pool, registry, q, testConfig(), testLogger())
	s.sweep(context.Background())

	if !registry.IsLive("80:EA:CA:00:00:01") {
		t.Fatal("expected matching-prefix address to be dispatched")
	}
	if registry.IsLive("AA:BB:CC:00:00:02") {
		t.Fatal("non-matching-prefix address should never be dispatched")
	}
}

func TestScannerRecyclesListenerOnRediscoveryOfLiveAddress(t *testing.T) {
	adapter := &fakeAdapter{addresses: []sensor.Address{"80:EA:CA:00:00:01"}}
	pool := &fakePool{adapters: []*fakeAdapter{adapter}}
	registry := NewRegistry()
	q := queue.New(queue.DefaultCapacity)

	s := New(pool, registry, q, testConfig(), testLogger())
	s.sweep(context.Background())
	firstLen := registry.Len()
	firstListener := registry.listeners["80:EA:CA:00:00:01"]

	// A second sweep sees the same address again while its Listener is
	// still live. Spec §4.4 step 4 requires this to terminate the existing
	// Listener and dispatch a fresh one in its place, not no-op.
	adapter.mu.Lock()
	adapter.served = false
	adapter.mu.Unlock()
	s.sweep(context.Background())

	if registry.Len() != firstLen {
		t.Fatalf("expected registry size unchanged (one entry per address) on rediscovery, got %d -> %d", firstLen, registry.Len())
	}
	if len(pool.assigned) != 2 {
		t.Fatalf("expected a second adapter assignment on rediscovery, got %d", len(pool.assigned))
	}
	secondListener := registry.listeners["80:EA:CA:00:00:01"]
	if secondListener == firstListener {
		t.Fatal("expected rediscovery to replace the existing listener with a fresh one")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && firstListener.IsLive() {
		time.Sleep(5 * time.Millisecond)
	}
	if firstListener.IsLive() {
		t.Fatal("expected the recycled listener to have been terminated")
	}
}

func TestScannerReapsDeadListenersAndReassigns(t *testing.T) {
	adapter := &fakeAdapter{addresses: []sensor.Address{"80:EA:CA:00:00:01"}}
	pool := &fakePool{adapters: []*fakeAdapter{adapter}}
	registry := NewRegistry()
	q := queue.New(queue.DefaultCapacity)

	cfg := testConfig()
	cfg.ListenerConfig.WatchdogTimeout = 5 * time.Millisecond

	s := New(pool, registry, q, cfg, testLogger())
	s.sweep(context.Background())

	// Wait for the watchdog to kill the Listener (no readings ever sent).
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && registry.IsLive("80:EA:CA:00:00:01") {
		time.Sleep(5 * time.Millisecond)
	}
	if registry.IsLive("80:EA:CA:00:00:01") {
		t.Fatal("listener should have died from watchdog timeout")
	}

	adapter.mu.Lock()
	adapter.served = false
	adapter.mu.Unlock()
	s.sweep(context.Background())

	if !registry.IsLive("80:EA:CA:00:00:01") {
		t.Fatal("expected a fresh listener to be dispatched after reaping the dead one")
	}
	if len(pool.assigned) != 2 {
		t.Fatalf("expected two adapter assignments across both dispatches, got %d", len(pool.assigned))
	}
}

func TestScannerRoundRobinsAdapterAssignment(t *testing.T) {
	a1 := &fakeAdapter{}
	a2 := &fakeAdapter{}
	pool := &fakePool{adapters: []*fakeAdapter{a1, a2}}
	registry := NewRegistry()
	q := queue.New(queue.DefaultCapacity)

	s := New(pool, registry, q, testConfig(), testLogger())

	addrs := []sensor.Address{"80:EA:CA:00:00:01", "80:EA:CA:00:00:02", "80:EA:CA:00:00:03", "80:EA:CA:00:00:04"}
	for _, addr := range addrs {
		s.dispatch(context.Background(), addr)
	}

	if len(pool.assigned) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(pool.assigned))
	}
	for i, a := range pool.assigned {
		want := a1
		if i%2 == 1 {
			want = a2
		}
		if a != want {
			t.Fatalf("assignment %d: expected round-robin adapter, got a different one", i)
		}
	}
}
