package streamsvc

import (
	"github.com/dialogiot/foshgw/pkg/broadcaster"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// toWireResponse translates a broadcaster.OutputEvent into the wire
// response shape, omitting any sensor kind a device did not report this
// tick (spec §4.6).
func toWireResponse(event broadcaster.OutputEvent) *ReadSensorStreamResponse {
	resp := &ReadSensorStreamResponse{TimestampUnixNano: event.Timestamp.UnixNano()}
	for _, d := range event.Devices {
		resp.Devices = append(resp.Devices, deviceReadingToProto(d))
	}
	return resp
}

func deviceReadingToProto(d broadcaster.DeviceReading) *PerDeviceReading {
	out := &PerDeviceReading{Address: string(d.Address)}

	if r, ok := d.Readings[sensor.Accelerometer]; ok {
		out.Acceleration = &Acceleration{X: r.Vector.X, Y: r.Vector.Y, Z: r.Vector.Z}
	}
	if r, ok := d.Readings[sensor.Gyroscope]; ok {
		out.Gyroscope = &Gyroscope{X: r.Vector.X, Y: r.Vector.Y, Z: r.Vector.Z}
	}
	if r, ok := d.Readings[sensor.Barometer]; ok {
		out.Barometer = &Barometer{Pressure: r.Pressure}
	}
	return out
}
