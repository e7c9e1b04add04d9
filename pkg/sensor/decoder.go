package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// headerLen is the length of the notification-id/sensor-state/sensor-event
// header every payload begins with, shared across all three sensor kinds
// (verified against the barometer and accelerometer callbacks in the
// original FoshWrapper-based service, which both skip the same 3 bytes).
const headerLen = 3

// ErrMalformedFrame is returned when a payload is shorter than required for
// its declared sensor kind. The decoder never logs; callers decide whether
// and how to report it.
var ErrMalformedFrame = errors.New("malformed sensor frame")

// DefaultAccelerometerRangeG and DefaultGyroscopeRangeDPS are the ranges the
// Listener configures a device to use at connect time (spec §4.3).
const (
	DefaultAccelerometerRangeG = 8
	DefaultGyroscopeRangeDPS   = 2000

	// accelerometerFullScaleRaw gives AccelerometerScale(8) == 2048, the
	// constant original_source/gv-service/main.py hard-codes as
	// ACCELEROMETER_SCALE, generalized to the device's other selectable
	// ranges.
	accelerometerFullScaleRaw = 16384
	gyroscopeFullScaleRaw     = 32768
	barometerDivisor          = 100.0
)

// AccelerometerScale returns the raw-to-g divisor for the given range.
func AccelerometerScale(rangeG int) float64 {
	return accelerometerFullScaleRaw / float64(rangeG)
}

// GyroscopeScale returns the raw-to-deg/s divisor for the given range.
func GyroscopeScale(rangeDPS int) float64 {
	return gyroscopeFullScaleRaw / float64(rangeDPS)
}

// DecodeAccelerometer parses a notification payload into a three-axis
// acceleration reading in g, scaled per accelScale (16384/range_in_g).
func DecodeAccelerometer(payload []byte, accelScale float64) (Reading, error) {
	v, err := decodeVector3(payload, accelScale)
	if err != nil {
		return Reading{}, fmt.Errorf("accelerometer: %w", err)
	}
	return Reading{Vector: v}, nil
}

// DecodeGyroscope parses a notification payload into a three-axis angular
// rate reading in °/s, scaled per gyroScale (32768/range_in_dps).
func DecodeGyroscope(payload []byte, gyroScale float64) (Reading, error) {
	v, err := decodeVector3(payload, gyroScale)
	if err != nil {
		return Reading{}, fmt.Errorf("gyroscope: %w", err)
	}
	return Reading{Vector: v}, nil
}

// DecodeBarometer parses a notification payload into a pressure reading in
// hPa: one little-endian uint32, divided by 100.
func DecodeBarometer(payload []byte) (Reading, error) {
	if len(payload) < headerLen+4 {
		return Reading{}, fmt.Errorf("barometer: %w", ErrMalformedFrame)
	}
	raw := binary.LittleEndian.Uint32(payload[headerLen : headerLen+4])
	return Reading{Pressure: float64(raw) / barometerDivisor}, nil
}

// decodeVector3 skips the shared header and reads three little-endian
// signed int16 values, dividing each by scale.
func decodeVector3(payload []byte, scale float64) (Vector3, error) {
	if len(payload) < headerLen+6 {
		return Vector3{}, ErrMalformedFrame
	}
	x := int16(binary.LittleEndian.Uint16(payload[headerLen : headerLen+2]))
	y := int16(binary.LittleEndian.Uint16(payload[headerLen+2 : headerLen+4]))
	z := int16(binary.LittleEndian.Uint16(payload[headerLen+4 : headerLen+6]))
	return Vector3{
		X: float64(x) / scale,
		Y: float64(y) / scale,
		Z: float64(z) / scale,
	}, nil
}

// Decode dispatches to the kind-specific decoder, using accelScale/gyroScale
// for the two vector sensors. It is the entry point the Listener calls for
// each incoming notification.
func Decode(kind Kind, payload []byte, accelScale, gyroScale float64) (Reading, error) {
	switch kind {
	case Accelerometer:
		return DecodeAccelerometer(payload, accelScale)
	case Gyroscope:
		return DecodeGyroscope(payload, gyroScale)
	case Barometer:
		return DecodeBarometer(payload)
	default:
		return Reading{}, fmt.Errorf("decode: unsupported sensor kind %v", kind)
	}
}
