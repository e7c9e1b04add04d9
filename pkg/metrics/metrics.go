// Package metrics exposes the Prometheus instrumentation for the gateway
// pipeline: discovery, listener lifecycle, frame decoding, and fanout.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListenersActive is the number of live listeners at this instant.
	ListenersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foshgw_listeners_active",
		Help: "Number of devices currently owning a live listener",
	})

	// ListenerTerminations counts why a listener stopped.
	ListenerTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foshgw_listener_terminations_total",
		Help: "Total listener terminations by reason",
	}, []string{"reason"})

	// ScanSweeps counts completed scan sweeps and their outcome.
	ScanSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foshgw_scan_sweeps_total",
		Help: "Total scan sweeps by outcome",
	}, []string{"outcome"})

	// DevicesDiscovered counts devices seen per sweep, after the MAC-prefix filter.
	DevicesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foshgw_devices_discovered_total",
		Help: "Total devices discovered matching the configured MAC prefix",
	})

	// DecodeErrors counts malformed-frame decode failures by sensor kind.
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foshgw_decode_errors_total",
		Help: "Total frame decode failures by sensor kind",
	}, []string{"sensor"})

	// ReadingsDecoded counts successfully decoded sensor readings by kind.
	ReadingsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foshgw_readings_decoded_total",
		Help: "Total successfully decoded sensor readings by kind",
	}, []string{"sensor"})

	// BroadcastDevices is a histogram of device count per broadcast snapshot.
	BroadcastDevices = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foshgw_broadcast_devices",
		Help:    "Number of devices present in each broadcast snapshot",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	// BroadcastBuildSeconds times the snapshot-to-OutputEvent assembly.
	BroadcastBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foshgw_broadcast_build_seconds",
		Help:    "Time spent assembling an OutputEvent from an aggregator snapshot",
		Buckets: prometheus.DefBuckets,
	})

	// SubscribersConnected is the current count of stream subscribers.
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foshgw_subscribers_connected",
		Help: "Number of currently connected ReadSensorStream subscribers",
	})

	// FanoutDrops counts events dropped for a full subscriber queue.
	FanoutDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foshgw_fanout_drops_total",
		Help: "Total broadcast events dropped because a subscriber queue was full",
	})

	// AdaptersAvailable is the current count of host BLE adapters.
	AdaptersAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foshgw_adapters_available",
		Help: "Number of host BLE adapters currently enumerated",
	})
)

// Reasons used with ListenerTerminations.
const (
	ReasonConnectFailed   = "connect_failed"
	ReasonConfigFailed    = "config_failed"
	ReasonSubscribeFailed = "subscribe_failed"
	ReasonWatchdog        = "watchdog"
	ReasonCancelled       = "cancelled"
	ReasonRecycled        = "recycled"
)

// Outcomes used with ScanSweeps.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
