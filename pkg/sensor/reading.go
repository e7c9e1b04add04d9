// Package sensor holds the gateway's core data model: device addresses, the
// closed set of sensor kinds, the tagged-union Reading, and the
// SensorEvent that flows from a Listener into the aggregation pipeline.
package sensor

import (
	"fmt"
	"strings"
)

// Address is a colon-separated 48-bit MAC address, stringly-typed at the
// boundaries it crosses (BLE scan results, the wire protocol).
type Address string

// HasPrefix reports whether the address begins with prefix, the filter the
// Scanner applies to every discovered device.
func (a Address) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(a), prefix)
}

// Kind is the closed enumeration of notification sources a Dialog IoT tag
// exposes. Callers must ignore values outside this set rather than failing,
// since the source device firmware may report notification kinds this
// gateway version does not yet decode.
type Kind int

const (
	Accelerometer Kind = iota
	Gyroscope
	Barometer
)

// String renders the kind as its wire/metrics label.
func (k Kind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Gyroscope:
		return "gyroscope"
	case Barometer:
		return "barometer"
	default:
		return "unknown"
	}
}

// Vector3 is a three-axis reading shared by the accelerometer (g) and
// gyroscope (°/s) sensor kinds.
type Vector3 struct {
	X, Y, Z float64
}

// Reading is a tagged union: exactly one of the three variant fields below
// is meaningful, selected by the Kind carried alongside it in SensorEvent.
// It is represented as a tagged sum with distinct field shapes rather than a
// generic map, per the data model's explicit requirement.
type Reading struct {
	Vector   Vector3 // valid when Kind is Accelerometer or Gyroscope
	Pressure float64 // valid when Kind is Barometer, in hPa
}

// SensorEvent is produced by a Listener and consumed by the Aggregator.
type SensorEvent struct {
	Address Address
	Kind    Kind
	Reading Reading
}

func (e SensorEvent) String() string {
	switch e.Kind {
	case Accelerometer, Gyroscope:
		return fmt.Sprintf("%s %s (%.3f, %.3f, %.3f)", e.Address, e.Kind, e.Reading.Vector.X, e.Reading.Vector.Y, e.Reading.Vector.Z)
	case Barometer:
		return fmt.Sprintf("%s %s %.2f", e.Address, e.Kind, e.Reading.Pressure)
	default:
		return fmt.Sprintf("%s unknown", e.Address)
	}
}
