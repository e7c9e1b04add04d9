// Package ble implements the FoshWrapper-equivalent contract spec §6
// requires: scan/find, connect, read/write device config, subscribe to
// notifications, start, disconnect, plus host-adapter enumeration. The
// concrete backend is tinygo.org/x/bluetooth, following the teacher's
// pkg/transport/ble/ble.go adapter/device/characteristic handle pattern.
package ble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dialogiot/foshgw/pkg/sensor"
	"tinygo.org/x/bluetooth"
)

// Common errors.
var (
	ErrNotConnected  = errors.New("ble: not connected")
	ErrNotFound      = errors.New("ble: device not found")
	ErrNoAdapter     = errors.New("ble: no adapter assigned")
	ErrNotSubscribed = errors.New("ble: characteristic not subscribed")
)

// NotificationHandler is the callback signature FoshWrapper's subscribe
// exposes: an opaque handle plus the raw notification payload.
type NotificationHandler func(handle int, data []byte)

// DiscoveredDevice is one entry from a Find scan.
type DiscoveredDevice struct {
	Address sensor.Address
}

// ServiceUUIDs names the GATT service/characteristics a Dialog IoT tag
// exposes. The exact UUIDs are a hardware datasheet detail outside this
// spec's scope (FoshWrapper owns the GATT plumbing); DefaultServiceUUIDs
// supplies placeholder values, and a caller targeting other hardware passes
// its own ServiceUUIDs to NewPool.
type ServiceUUIDs struct {
	Service       bluetooth.UUID
	Config        bluetooth.UUID
	Command       bluetooth.UUID
	Accelerometer bluetooth.UUID
	Gyroscope     bluetooth.UUID
	Barometer     bluetooth.UUID
}

// DefaultServiceUUIDs returns placeholder 128-bit UUIDs for the IoT-DK-SFL
// reference board's sensor service. config.Config has no field for them;
// cmd/foshgwd always uses these defaults.
func DefaultServiceUUIDs() ServiceUUIDs {
	return ServiceUUIDs{
		Service:       bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x40, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
		Config:        bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x41, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
		Command:       bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x42, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
		Accelerometer: bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x43, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
		Gyroscope:     bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x44, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
		Barometer:     bluetooth.NewUUID([16]byte{0x00, 0x00, 0xFE, 0x45, 0xCC, 0x7A, 0x48, 0x2A, 0x98, 0x4A, 0x7F, 0x2E, 0xD5, 0xB3, 0xE5, 0x8F}),
	}
}

// DeviceFactory binds a fresh Device session to one host adapter. *Adapter
// implements it; tests substitute a fake to exercise the Listener lifecycle
// without real hardware.
type DeviceFactory interface {
	NewDevice() Device
}

// Scannable performs the host-adapter scan step. *Adapter implements it;
// tests substitute a fake to exercise the Scanner sweep loop without real
// hardware.
type Scannable interface {
	Find(ctx context.Context, timeout time.Duration) ([]DiscoveredDevice, error)
}

// AdapterSource hands out adapters for connecting (round-robin, one per
// Listener) and scanning (any one suffices). *Pool implements it.
type AdapterSource interface {
	Next() (DeviceFactory, error)
	Any() (Scannable, error)
}

// Device is one connected BLE session: the per-Listener handle that owns
// one host adapter for its lifetime.
type Device interface {
	// Connect opens the GATT session to address using this device's
	// assigned adapter.
	Connect(ctx context.Context, address sensor.Address) error

	// GetConfig reads the device's current configuration.
	GetConfig() (DeviceConfig, error)

	// SetConfig writes cfg to the device, optionally persisting to EEPROM.
	SetConfig(cfg DeviceConfig, persist bool) error

	// Subscribe registers a notification handler for the named sensor
	// ("accelerometer", "gyroscope", "barometer").
	Subscribe(sensorName string, handler NotificationHandler) error

	// Start sends the device's start-streaming command.
	Start() error

	// Disconnect closes the session. It is idempotent and safe to call
	// unconditionally, even if Connect never succeeded.
	Disconnect() error
}

// Adapter is one host BLE controller. Pool hands adapters out round-robin,
// so one Adapter carries several sessions when Listeners outnumber
// adapters; nothing limits it to one session at a time.
type Adapter struct {
	Name     string
	adapter  *bluetooth.Adapter
	uuids    ServiceUUIDs
	scanWait time.Duration
}

// NewAdapter wraps a tinygo bluetooth.Adapter under the given host name
// (e.g. "hci0").
func NewAdapter(name string, adapter *bluetooth.Adapter, uuids ServiceUUIDs) *Adapter {
	return &Adapter{Name: name, adapter: adapter, uuids: uuids, scanWait: 100 * time.Millisecond}
}

// Find performs a BLE scan for timeout, returning every advertisement seen
// regardless of address prefix; prefix filtering is the Scanner's job.
func (a *Adapter) Find(ctx context.Context, timeout time.Duration) ([]DiscoveredDevice, error) {
	if a.adapter == nil {
		return nil, ErrNoAdapter
	}
	if err := a.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter %s: %w", a.Name, err)
	}

	found := make(map[string]DiscoveredDevice)
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- a.adapter.Scan(func(adp *bluetooth.Adapter, result bluetooth.ScanResult) {
			addr := result.Address.String()
			found[addr] = DiscoveredDevice{Address: sensor.Address(addr)}
		})
	}()

	select {
	case <-scanCtx.Done():
	case err := <-scanErr:
		if err != nil {
			return nil, fmt.Errorf("scan on %s: %w", a.Name, err)
		}
	}
	_ = a.adapter.StopScan()

	devices := make([]DiscoveredDevice, 0, len(found))
	for _, d := range found {
		devices = append(devices, d)
	}
	return devices, nil
}

// NewDevice binds a fresh Device session to this adapter. The Listener that
// owns the Device holds it for the session's whole lifetime; other sessions
// may be open through the same adapter at the same time.
func (a *Adapter) NewDevice() Device {
	return &session{adapterName: a.Name, adapter: a.adapter, uuids: a.uuids}
}

// session is the concrete Device backed by tinygo.org/x/bluetooth,
// following the state layout of the teacher's transport.Transport (adapter,
// device, characteristics held as instance fields, one session per struct).
type session struct {
	adapterName string
	adapter     *bluetooth.Adapter

	uuids ServiceUUIDs

	device  *bluetooth.Device
	config  *bluetooth.DeviceCharacteristic
	command *bluetooth.DeviceCharacteristic
	accel   *bluetooth.DeviceCharacteristic
	gyro    *bluetooth.DeviceCharacteristic
	baro    *bluetooth.DeviceCharacteristic

	connected bool
}

func (s *session) Connect(ctx context.Context, address sensor.Address) error {
	if s.adapter == nil {
		return ErrNoAdapter
	}

	mac, err := bluetooth.ParseMAC(string(address))
	if err != nil {
		return fmt.Errorf("parse address %s: %w", address, err)
	}

	device, err := s.adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s via %s: %w", address, s.adapterName, err)
	}
	s.device = &device

	services, err := device.DiscoverServices([]bluetooth.UUID{s.uuids.Service})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return fmt.Errorf("discover service on %s: %w", address, err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{
		s.uuids.Config, s.uuids.Command, s.uuids.Accelerometer, s.uuids.Gyroscope, s.uuids.Barometer,
	})
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("discover characteristics on %s: %w", address, err)
	}
	for i := range chars {
		c := &chars[i]
		switch c.UUID() {
		case s.uuids.Config:
			s.config = c
		case s.uuids.Command:
			s.command = c
		case s.uuids.Accelerometer:
			s.accel = c
		case s.uuids.Gyroscope:
			s.gyro = c
		case s.uuids.Barometer:
			s.baro = c
		}
	}

	s.connected = true
	return nil
}

func (s *session) characteristicFor(sensorName string) (*bluetooth.DeviceCharacteristic, error) {
	switch sensorName {
	case "accelerometer":
		return s.accel, nil
	case "gyroscope":
		return s.gyro, nil
	case "barometer":
		return s.baro, nil
	default:
		return nil, fmt.Errorf("unknown sensor %q", sensorName)
	}
}

func (s *session) GetConfig() (DeviceConfig, error) {
	if !s.connected || s.config == nil {
		return DeviceConfig{}, ErrNotConnected
	}
	buf := make([]byte, 8)
	n, err := s.config.Read(buf)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("read config: %w", err)
	}
	return decodeDeviceConfig(buf[:n]), nil
}

func (s *session) SetConfig(cfg DeviceConfig, persist bool) error {
	if !s.connected || s.config == nil {
		return ErrNotConnected
	}
	_, err := s.config.WriteWithoutResponse(encodeDeviceConfig(cfg, persist))
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (s *session) Subscribe(sensorName string, handler NotificationHandler) error {
	char, err := s.characteristicFor(sensorName)
	if err != nil {
		return err
	}
	if char == nil {
		return ErrNotSubscribed
	}
	handle := 0
	return char.EnableNotifications(func(buf []byte) {
		data := make([]byte, len(buf))
		copy(data, buf)
		handler(handle, data)
	})
}

func (s *session) Start() error {
	if !s.connected || s.command == nil {
		return ErrNotConnected
	}
	_, err := s.command.WriteWithoutResponse([]byte{0x01})
	return err
}

func (s *session) Disconnect() error {
	if s.device == nil {
		return nil
	}
	err := s.device.Disconnect()
	s.connected = false
	return err
}

// decodeDeviceConfig and encodeDeviceConfig translate between the device's
// on-wire config record and DeviceConfig. The exact byte layout is a
// hardware detail FoshWrapper owns; this mirrors the field order the
// original service writes in (sensor_combination, accelerometer_rate,
// accelerometer_range byte codes, gyroscope_range as a little-endian
// uint16 since its recognized value, 2000, does not fit one byte), followed
// by the two calibration flags.
func decodeDeviceConfig(buf []byte) DeviceConfig {
	cfg := DeviceConfig{}
	if len(buf) > 0 {
		cfg.SensorCombination = int(buf[0])
	}
	if len(buf) > 1 {
		cfg.AccelerometerRate = int(buf[1])
	}
	if len(buf) > 2 {
		cfg.AccelerometerRange = int(buf[2])
	}
	if len(buf) > 4 {
		cfg.GyroscopeRange = int(buf[3]) | int(buf[4])<<8
	}
	if len(buf) > 5 {
		cfg.CalibrationMode = buf[5] != 0
	}
	if len(buf) > 6 {
		cfg.AutoCalibrationMode = buf[6] != 0
	}
	return cfg
}

func encodeDeviceConfig(cfg DeviceConfig, persist bool) []byte {
	buf := make([]byte, 8)
	buf[0] = byte(cfg.SensorCombination)
	buf[1] = byte(cfg.AccelerometerRate)
	buf[2] = byte(cfg.AccelerometerRange)
	buf[3] = byte(cfg.GyroscopeRange)
	buf[4] = byte(cfg.GyroscopeRange >> 8)
	if cfg.CalibrationMode {
		buf[5] = 1
	}
	if cfg.AutoCalibrationMode {
		buf[6] = 1
	}
	if persist {
		buf[7] = 1
	}
	return buf
}
