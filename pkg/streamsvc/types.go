// Package streamsvc implements C7: the ReadSensorStream gRPC service that
// fans out Broadcaster snapshots to every connected subscriber (spec
// §4.6/§4.7).
//
// The message types below are hand-authored in the shape protoc-gen-go and
// protoc-gen-go-grpc would produce from a ReadSensorStream .proto, since this
// module has no .proto/protoc step of its own; the wire shape still follows
// the teacher's ComxService generated-code conventions (request/response
// structs, an Unimplemented embed, a Register function, a typed stream
// interface).
package streamsvc

import (
	"google.golang.org/grpc"
)

// Acceleration is a tri-axial reading in g, mirroring sensor.Vector3 for the
// accelerometer kind.
type Acceleration struct {
	X, Y, Z float64
}

// Gyroscope is a tri-axial reading in degrees/second.
type Gyroscope struct {
	X, Y, Z float64
}

// Barometer is a single scalar reading in hPa.
type Barometer struct {
	Pressure float64
}

// PerDeviceReading carries one device's latest readings in one broadcast.
// A field is present only if that sensor kind reported since the previous
// broadcast (spec §4.6, "devices/sensors absent from this tick are simply
// omitted").
type PerDeviceReading struct {
	Address      string
	Acceleration *Acceleration
	Gyroscope    *Gyroscope
	Barometer    *Barometer
}

// ReadSensorStreamRequest is the (currently empty) request that opens a
// stream. It exists as its own type, matching protoc-gen-go's convention of
// a request message even for parameterless RPCs, so a filter field can be
// added later without breaking the wire contract.
type ReadSensorStreamRequest struct{}

// ReadSensorStreamResponse is one broadcast tick on the wire: a Unix-nanos
// timestamp plus every device that reported.
type ReadSensorStreamResponse struct {
	TimestampUnixNano int64
	Devices           []*PerDeviceReading
}

// ReadSensorService_ReadSensorStreamServer is the server-side stream handle,
// matching the shape protoc-gen-go-grpc emits for a server-streaming RPC.
type ReadSensorService_ReadSensorStreamServer interface {
	Send(*ReadSensorStreamResponse) error
	grpc.ServerStream
}

// ReadSensorServiceServer is the service contract the gRPC server dispatches
// to.
type ReadSensorServiceServer interface {
	ReadSensorStream(*ReadSensorStreamRequest, ReadSensorService_ReadSensorStreamServer) error
}

// UnimplementedReadSensorServiceServer must be embedded by any
// ReadSensorServiceServer implementation for forward wire compatibility,
// matching protoc-gen-go-grpc's generated embed.
type UnimplementedReadSensorServiceServer struct{}

func (UnimplementedReadSensorServiceServer) ReadSensorStream(*ReadSensorStreamRequest, ReadSensorService_ReadSensorStreamServer) error {
	return grpcUnimplemented("ReadSensorStream")
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "foshgw.ReadSensorService",
	HandlerType: (*ReadSensorServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ReadSensorStream",
			Handler:       readSensorStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "foshgw/streamsvc.proto",
}

func readSensorStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(ReadSensorStreamRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ReadSensorServiceServer).ReadSensorStream(req, &readSensorStreamServer{stream})
}

type readSensorStreamServer struct{ grpc.ServerStream }

func (s *readSensorStreamServer) Send(resp *ReadSensorStreamResponse) error {
	return s.ServerStream.SendMsg(resp)
}

// RegisterReadSensorServiceServer registers srv on s, matching the
// protoc-gen-go-grpc RegisterXServer convention.
func RegisterReadSensorServiceServer(s grpc.ServiceRegistrar, srv ReadSensorServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func grpcUnimplemented(method string) error {
	return &unimplementedError{method: method}
}

type unimplementedError struct{ method string }

func (e *unimplementedError) Error() string {
	return "method " + e.method + " not implemented"
}
