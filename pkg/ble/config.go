package ble

import "github.com/dialogiot/foshgw/pkg/sensor"

// Recognized device configuration values (spec §6, closed sets).
const (
	// SensorCombinationAccelGyro selects the accelerometer+gyroscope
	// notification combination.
	SensorCombinationAccelGyro = 3

	// AccelerometerRate100Hz is the sample rate written at connect time.
	AccelerometerRate100Hz = 0x08

	// AccelerometerRange8G selects the +-8g full-scale range.
	AccelerometerRange8G = 0x08

	// GyroscopeRange2000DPS selects the +-2000 deg/s full-scale range.
	GyroscopeRange2000DPS = 2000
)

// DeviceConfig mirrors the subset of FoshWrapper's recognized config fields
// the Listener reads, overlays, and writes back.
type DeviceConfig struct {
	SensorCombination   int
	AccelerometerRate   int
	AccelerometerRange  int
	GyroscopeRange      int
	CalibrationMode     bool
	AutoCalibrationMode bool
}

// Equal reports whether two configs carry the same recognized field values,
// used by the Listener to decide whether a write-back is necessary.
func (c DeviceConfig) Equal(other DeviceConfig) bool {
	return c == other
}

// DesiredConfig returns the fixed overlay the Listener applies to every
// device at connect time (spec §4.3 step 2): accel+gyro combination,
// 100Hz accelerometer rate, +-8g accelerometer range, 2000 deg/s gyroscope
// range. There is no reconfiguration API; this overlay is the only
// configuration the gateway ever writes.
func DesiredConfig() DeviceConfig {
	return DeviceConfig{
		SensorCombination:  SensorCombinationAccelGyro,
		AccelerometerRate:  AccelerometerRate100Hz,
		AccelerometerRange: AccelerometerRange8G,
		GyroscopeRange:     GyroscopeRange2000DPS,
	}
}

// AccelScale returns the engineering-unit scale for this config's
// accelerometer range.
func (c DeviceConfig) AccelScale() float64 {
	return sensor.AccelerometerScale(c.AccelerometerRange)
}

// GyroScale returns the engineering-unit scale for this config's gyroscope
// range.
func (c DeviceConfig) GyroScale() float64 {
	return sensor.GyroscopeScale(c.GyroscopeRange)
}
