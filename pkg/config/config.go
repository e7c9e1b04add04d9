// Package config handles configuration loading and validation for the
// gateway daemon.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default config file locations, checked in order when no --config flag is
// given.
var configPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./foshgw.yaml",
	"~/.config/foshgw/config.yaml",
	"/etc/foshgw/config.yaml",
}

// Config is the complete gateway configuration: device discovery, the
// per-device lifecycle, the aggregation/broadcast cadence, and the
// surrounding ambient stack (logging, metrics, admin HTTP).
type Config struct {
	// DeviceAddressPrefix filters BLE advertisements down to Dialog IoT
	// tags (spec §4.2's "starts with 80:EA:CA:").
	DeviceAddressPrefix string `yaml:"device_address_prefix" validate:"required"`

	// WatchdogTimeout is how long a Listener tolerates silence from its
	// device before declaring it dead (spec §4.3).
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout" validate:"required,gt=0"`

	// ListenerTerminateGrace bounds how long the Scanner or Supervisor
	// waits for a Listener to finish disconnecting before abandoning it.
	ListenerTerminateGrace time.Duration `yaml:"listener_terminate_grace" validate:"required,gt=0"`

	// ScanInterval and ScanIdleInterval are the Scanner's active-scan and
	// idle-wait durations (spec §4.4).
	ScanInterval     time.Duration `yaml:"scan_interval" validate:"required,gt=0"`
	ScanIdleInterval time.Duration `yaml:"scan_idle_interval" validate:"required,gt=0"`

	// AggregatePeriod is the Broadcaster's fixed publish cadence (spec
	// §4.5's AGGREGATE_PERIOD_SECONDS).
	AggregatePeriod time.Duration `yaml:"aggregate_period" validate:"required,gt=0"`

	// GRPCPort is the ReadSensorStream service's listen port.
	GRPCPort int `yaml:"grpc_port" validate:"required,gt=0,lt=65536"`

	// HTTPPort serves /healthz and /metrics (C12, outside this spec's
	// original scope but carried as ambient stack).
	HTTPPort int `yaml:"http_port" validate:"required,gt=0,lt=65536"`

	// AdapterMonitorSchedule is the robfig/cron expression the Adapter
	// Monitor uses to re-enumerate host adapters.
	AdapterMonitorSchedule string `yaml:"adapter_monitor_schedule"`

	// SensorQueueCapacity bounds the Sensor Queue (spec §4.2's bounded
	// MPMC channel).
	SensorQueueCapacity int `yaml:"sensor_queue_capacity" validate:"required,gt=0"`

	// PersistDeviceEEPROM mirrors the Listener's device-config write
	// behavior (spec §4.3 step 2).
	PersistDeviceEEPROM bool `yaml:"persist_device_eeprom"`

	Logging LoggingConfig `yaml:"logging"`

	// ConfigFilePath is the file this Config was loaded from, empty if no
	// file was found and DefaultConfig was used untouched. The Config
	// Watcher needs this to know what to watch; it is not itself a YAML
	// field.
	ConfigFilePath string `yaml:"-"`
}

// LoggingConfig configures the shared logger.Logger instance.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the spec's hard-coded defaults, used when no config
// file is found and as the base a YAML file overlays onto.
func DefaultConfig() *Config {
	return &Config{
		DeviceAddressPrefix:    "80:EA:CA:",
		WatchdogTimeout:        5 * time.Second,
		ListenerTerminateGrace: 5 * time.Second,
		ScanInterval:           5 * time.Second,
		ScanIdleInterval:       6 * time.Second,
		AggregatePeriod:        250 * time.Millisecond,
		GRPCPort:               5065,
		HTTPPort:               8080,
		AdapterMonitorSchedule: "@every 30s",
		SensorQueueCapacity:    4096,
		PersistDeviceEEPROM:    true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration, overlaying a YAML file (at path, or the first
// default location found) onto DefaultConfig. If no file is found anywhere,
// the defaults are returned unmodified.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	for _, p := range configPaths {
		if len(p) > 0 && p[0] == '~' {
			home, err := os.UserHomeDir()
			if err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}

	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads and validates configuration from a specific file, starting
// from DefaultConfig so a partial overlay still yields a complete config.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = path

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes cfg to path as YAML, creating parent directories as needed.
// Used by operators to persist a config derived at runtime; the gateway
// itself only reads.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
