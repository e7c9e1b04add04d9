// Package supervisor implements C8: the top-level process that brings the
// pipeline up in dependency order and tears it down in reverse (spec
// §4.8).
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/dialogiot/foshgw/pkg/aggregator"
	"github.com/dialogiot/foshgw/pkg/admin"
	"github.com/dialogiot/foshgw/pkg/ble"
	"github.com/dialogiot/foshgw/pkg/broadcaster"
	"github.com/dialogiot/foshgw/pkg/config"
	"github.com/dialogiot/foshgw/pkg/listener"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/scanner"
	"github.com/dialogiot/foshgw/pkg/streamsvc"
)

// Supervisor owns every long-running component's lifecycle.
type Supervisor struct {
	cfg *config.Config
	log *logger.Logger

	pool     *ble.Pool
	q        *queue.Queue
	agg      *aggregator.Aggregator
	registry *scanner.Registry
	scan     *scanner.Scanner
	subs     *streamsvc.BroadcastSubscriberSet
	stream   *streamsvc.Server
	bcast    *broadcaster.Broadcaster
	adminSrv *admin.Server
	watcher  *config.Watcher

	cancel context.CancelFunc
}

// health composes Registry and BroadcastSubscriberSet into admin.HealthProvider.
type health struct {
	registry *scanner.Registry
	subs     *streamsvc.BroadcastSubscriberSet
}

func (h health) ListenersActive() int      { return h.registry.ListenersActive() }
func (h health) SubscribersConnected() int { return h.subs.SubscribersConnected() }

// New builds a Supervisor from cfg. It does not start anything; call Run.
func New(cfg *config.Config, uuids ble.ServiceUUIDs, log *logger.Logger) (*Supervisor, error) {
	ctx := context.Background()

	pool, err := ble.NewPool(ctx, uuids, log)
	if err != nil {
		return nil, fmt.Errorf("no host BLE adapters: %w", err)
	}

	q := queue.New(cfg.SensorQueueCapacity)
	agg := aggregator.New(q, log)
	registry := scanner.NewRegistry()
	subs := streamsvc.NewBroadcastSubscriberSet(log)

	scanCfg := scanner.Config{
		AddressPrefix:          cfg.DeviceAddressPrefix,
		ScanInterval:           cfg.ScanInterval,
		ScanIdleInterval:       cfg.ScanIdleInterval,
		ListenerTerminateGrace: cfg.ListenerTerminateGrace,
		ListenerConfig: listener.Config{
			WatchdogTimeout:     cfg.WatchdogTimeout,
			PersistDeviceEEPROM: cfg.PersistDeviceEEPROM,
		},
	}
	scan := scanner.New(pool, registry, q, scanCfg, log)

	streamSrv := streamsvc.NewServer(cfg.GRPCPort, subs, log)
	bcast := broadcaster.New(agg, subs, cfg.AggregatePeriod, log)
	adminSrv := admin.NewServer(cfg.HTTPPort, health{registry: registry, subs: subs}, log)

	var watcher *config.Watcher
	if cfg.ConfigFilePath != "" {
		watcher, err = config.NewWatcher(cfg.ConfigFilePath, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
			watcher = nil
		}
	}

	return &Supervisor{
		cfg:      cfg,
		log:      log.Component("supervisor"),
		pool:     pool,
		q:        q,
		agg:      agg,
		registry: registry,
		scan:     scan,
		subs:     subs,
		stream:   streamSrv,
		bcast:    bcast,
		adminSrv: adminSrv,
		watcher:  watcher,
	}, nil
}

// Run starts every component in dependency order and blocks until ctx is
// cancelled, then tears everything down in reverse order (spec §4.8: Sensor
// Queue -> Aggregator -> Scanner -> RPC server + Stream Service ->
// Broadcaster, plus the admin surface and ambient monitors).
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.agg.Run(runCtx)
	go s.scan.Run(runCtx)

	if err := s.adminSrv.Start(); err != nil {
		cancel()
		return fmt.Errorf("start admin server: %w", err)
	}
	if err := s.stream.Start(); err != nil {
		cancel()
		return fmt.Errorf("start stream service: %w", err)
	}
	if err := s.pool.StartMonitor(runCtx, s.cfg.AdapterMonitorSchedule); err != nil {
		s.log.Warn("adapter monitor not started", "error", err)
	}
	if s.watcher != nil {
		go s.watcher.Run(runCtx, func(cfg *config.Config) {
			s.log.SetLevel(cfg.Logging.Level)
		})
	}

	s.log.Info("gateway running")
	go s.bcast.Run(runCtx)

	<-runCtx.Done()
	return s.shutdown()
}

// Stop requests shutdown; Run's caller normally does this via ctx
// cancellation, but Stop is exposed for callers that hold a Supervisor
// reference directly.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) shutdown() error {
	s.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.stream.Stop(shutdownCtx); err != nil {
		s.log.Warn("stream service shutdown error", "error", err)
	}
	s.pool.StopMonitor(s.cfg.ListenerTerminateGrace)
	if err := s.adminSrv.Stop(shutdownCtx); err != nil {
		s.log.Warn("admin server shutdown error", "error", err)
	}
	s.registry.TerminateAll(s.cfg.ListenerTerminateGrace)
	s.agg.Stop()

	s.log.Info("shutdown complete")
	return nil
}
