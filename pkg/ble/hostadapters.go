package ble

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/metrics"
	"github.com/robfig/cron/v3"
	"tinygo.org/x/bluetooth"
)

var (
	_ DeviceFactory = (*Adapter)(nil)
	_ Scannable     = (*Adapter)(nil)
	_ AdapterSource = (*Pool)(nil)
)

// HostAdapterNames runs the hcitool-equivalent host utility and parses its
// stdout for whitespace-separated adapter names (spec §6, "Host BLE
// adapters"). This shells out rather than reaching for a library because
// there is no Go HCI-adapter-enumeration package in the ecosystem that
// wraps this one-line utility better than exec.Command itself.
func HostAdapterNames(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "hcitool", "dev")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("hcitool dev: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		for _, f := range fields {
			if strings.HasPrefix(f, "hci") {
				names = append(names, f)
			}
		}
	}
	return names, nil
}

// Pool hands out Adapter handles round-robin across the host's BLE
// adapters, and refreshes the underlying adapter list periodically so a
// hot-plugged dongle is picked up without a restart.
type Pool struct {
	mu       sync.Mutex
	adapters []*Adapter
	next     int
	uuids    ServiceUUIDs
	log      *logger.Logger

	cron *cron.Cron
}

// NewPool creates a Pool seeded with the host's currently enumerated
// adapters. It fails fast if none are found, per spec §7
// ("host-adapter unavailability: ... Supervisor fails fast at startup").
func NewPool(ctx context.Context, uuids ServiceUUIDs, log *logger.Logger) (*Pool, error) {
	p := &Pool{uuids: uuids, log: log.Component("ble-pool")}
	if err := p.refresh(ctx); err != nil {
		return nil, err
	}
	if len(p.adapters) == 0 {
		return nil, fmt.Errorf("ble: no host BLE adapters available")
	}
	return p, nil
}

// refresh re-enumerates host adapters and rebuilds the pool, preserving
// round-robin position as well as it can across a size change.
func (p *Pool) refresh(ctx context.Context) error {
	names, err := HostAdapterNames(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	adapters := make([]*Adapter, 0, len(names))
	for _, name := range names {
		// tinygo.org/x/bluetooth only exposes the default adapter on most
		// hosts; each named host adapter is wrapped around the same
		// default handle, distinguished by name for round-robin
		// accounting and logging. On platforms exposing multiple distinct
		// adapter objects, DefaultAdapter would be replaced per name.
		adapters = append(adapters, NewAdapter(name, bluetooth.DefaultAdapter, p.uuids))
	}
	p.adapters = adapters
	if p.next >= len(adapters) && len(adapters) > 0 {
		p.next = 0
	}
	metrics.AdaptersAvailable.Set(float64(len(adapters)))
	return nil
}

// Next returns the next adapter in round-robin order (index modulo the
// adapter count) for a new Listener's connection.
func (p *Pool) Next() (DeviceFactory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.adapters) == 0 {
		return nil, ErrNoAdapter
	}
	a := p.adapters[p.next%len(p.adapters)]
	p.next++
	return a, nil
}

// Any returns an arbitrary adapter for host-level operations (scanning)
// that do not need a dedicated connection slot.
func (p *Pool) Any() (Scannable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.adapters) == 0 {
		return nil, ErrNoAdapter
	}
	return p.adapters[0], nil
}

// StartMonitor schedules periodic adapter re-enumeration using robfig/cron,
// so adapters that appear or disappear while the gateway runs are reflected
// in subsequent round-robin assignment (spec §4.4's "Adapter assignment"
// generalized to a host whose adapter list is not fixed at startup).
func (p *Pool) StartMonitor(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 30s"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := p.refresh(ctx); err != nil {
			p.log.Warn("adapter refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule adapter monitor: %w", err)
	}
	p.cron = c
	c.Start()
	return nil
}

// StopMonitor stops the periodic refresh, if running, waiting up to the
// given grace period for the current run to finish.
func (p *Pool) StopMonitor(grace time.Duration) {
	if p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
	}
}
