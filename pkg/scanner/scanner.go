// Package scanner implements C4: the sweep loop that discovers Dialog IoT
// tags, reaps dead Listeners, and assigns live ones round-robin across the
// host's BLE adapters (spec §4.4).
package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/dialogiot/foshgw/pkg/ble"
	"github.com/dialogiot/foshgw/pkg/listener"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/metrics"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// Config configures the sweep loop's cadence and the Listener each
// discovered device is handed to.
type Config struct {
	AddressPrefix          string
	ScanInterval           time.Duration
	ScanIdleInterval       time.Duration
	ListenerTerminateGrace time.Duration
	ListenerConfig         listener.Config
}

// Scanner runs the Reap -> Scan -> Filter -> Dispatch sweep described in
// spec §4.4.
type Scanner struct {
	pool     ble.AdapterSource
	registry *Registry
	queue    *queue.Queue
	cfg      Config
	log      *logger.Logger
}

// New creates a Scanner. pool supplies adapters for both scanning (Any) and
// per-device connections (Next); registry tracks live Listeners.
func New(pool ble.AdapterSource, registry *Registry, q *queue.Queue, cfg Config, log *logger.Logger) *Scanner {
	return &Scanner{pool: pool, registry: registry, queue: q, cfg: cfg, log: log.Component("scanner")}
}

// Run executes sweeps until ctx is cancelled. Each sweep reaps dead
// Listeners, scans for AddressPrefix-matching advertisements, and starts a
// new Listener for every matching address, terminating an address's live
// Listener first if it has one.
func (s *Scanner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.registry.TerminateAll(s.cfg.ListenerTerminateGrace)
			return
		default:
		}

		s.sweep(ctx)

		wait := s.cfg.ScanIdleInterval
		select {
		case <-ctx.Done():
			s.registry.TerminateAll(s.cfg.ListenerTerminateGrace)
			return
		case <-time.After(wait):
		}
	}
}

func (s *Scanner) sweep(ctx context.Context) {
	if reaped := s.registry.Reap(s.cfg.ListenerTerminateGrace); reaped > 0 {
		s.log.Debug("reaped dead listeners", "count", reaped)
	}
	metrics.ListenersActive.Set(float64(s.registry.Len()))

	scanAdapter, err := s.pool.Any()
	if err != nil {
		s.log.Warn("no adapter available for scan", "error", err)
		metrics.ScanSweeps.WithLabelValues(metrics.OutcomeError).Inc()
		return
	}

	found, err := scanAdapter.Find(ctx, s.cfg.ScanInterval)
	if err != nil {
		s.log.Warn("scan failed, backing off", "error", err)
		metrics.ScanSweeps.WithLabelValues(metrics.OutcomeError).Inc()
		return
	}
	metrics.ScanSweeps.WithLabelValues(metrics.OutcomeOK).Inc()

	for _, d := range found {
		if !strings.HasPrefix(string(d.Address), s.cfg.AddressPrefix) {
			continue
		}
		metrics.DevicesDiscovered.Inc()
		s.dispatch(ctx, d.Address)
	}
}

func (s *Scanner) dispatch(ctx context.Context, address sensor.Address) {
	if s.registry.IsLive(address) {
		s.log.Debug("rediscovered live device, recycling listener", "address", address)
		s.registry.Recycle(address, s.cfg.ListenerTerminateGrace)
	}

	adapter, err := s.pool.Next()
	if err != nil {
		s.log.Warn("no adapter available to assign", "address", address, "error", err)
		return
	}

	l := listener.New(address, adapter, s.queue, s.cfg.ListenerConfig, s.log)
	s.registry.Register(address, l)
	l.Start(ctx)
	metrics.ListenersActive.Set(float64(s.registry.Len()))
	s.log.Info("dispatched listener", "address", address)
}
