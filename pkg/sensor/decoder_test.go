package sensor

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDecodeAccelerometer(t *testing.T) {
	// hdr + x=0x0800 (2048 -> 1.0g), y=0, z=0xF000 (-4096 -> -2.0g) at scale 2048.
	payload := []byte{0x00, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0xF0}

	reading, err := DecodeAccelerometer(payload, AccelerometerScale(DefaultAccelerometerRangeG))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(reading.Vector.X, 1.0) || !almostEqual(reading.Vector.Y, 0.0) || !almostEqual(reading.Vector.Z, -2.0) {
		t.Fatalf("got (%v, %v, %v), want (1.0, 0.0, -2.0)", reading.Vector.X, reading.Vector.Y, reading.Vector.Z)
	}
}

func TestDecodeBarometer(t *testing.T) {
	// hdr + little-endian uint32 40000 -> 400.00 hPa.
	payload := []byte{0x00, 0x00, 0x00, 0x40, 0x9C, 0x00, 0x00}

	reading, err := DecodeBarometer(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(reading.Pressure, 400.00) {
		t.Fatalf("got %v, want 400.00", reading.Pressure)
	}
}

func TestDecodeGyroscope(t *testing.T) {
	scale := GyroscopeScale(DefaultGyroscopeRangeDPS)
	payload := []byte{0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0xC0}

	reading, err := DecodeGyroscope(payload, scale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantX := float64(int16(0x4000)) / scale
	wantZ := float64(int16(-0x4000)) / scale
	if !almostEqual(reading.Vector.X, wantX) || !almostEqual(reading.Vector.Z, wantZ) {
		t.Fatalf("got (%v, _, %v), want (%v, _, %v)", reading.Vector.X, reading.Vector.Z, wantX, wantZ)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		payload []byte
	}{
		{"short accelerometer", Accelerometer, []byte{0x00, 0x00, 0x00, 0x01}},
		{"short gyroscope", Gyroscope, []byte{0x00, 0x00, 0x00}},
		{"short barometer", Barometer, []byte{0x00, 0x00, 0x00, 0x01, 0x02}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.kind, tc.payload, AccelerometerScale(DefaultAccelerometerRangeG), GyroscopeScale(DefaultGyroscopeRangeDPS))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("got %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecodeUnknownKindIgnored(t *testing.T) {
	_, err := Decode(Kind(99), []byte{0, 0, 0, 0, 0, 0, 0, 0, 0}, 2048, 16.384)
	if err == nil {
		t.Fatalf("expected an error for unsupported kind")
	}
	if errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("unsupported-kind error should not be ErrMalformedFrame")
	}
}
