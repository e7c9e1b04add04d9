package streamsvc

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// wireCodecName is the content-subtype this package's gob codec negotiates
// under. It must never collide with "proto" (grpc-go's built-in codec),
// since the message types in types.go are plain structs, not proto.Message.
const wireCodecName = "foshgw-gob"

// gobCodec implements encoding.Codec over encoding/gob so the hand-authored
// wire types in this package (ReadSensorStreamRequest/Response,
// PerDeviceReading, Acceleration, Gyroscope, Barometer) can travel over a
// real google.golang.org/grpc server without implementing proto.Message.
// grpc-go's default codec type-asserts every SendMsg/RecvMsg argument to
// proto.Message, which these types deliberately do not satisfy.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("streamsvc: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("streamsvc: gob decode: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return wireCodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// ClientDialOption returns the grpc.DialOption a ReadSensorStream client
// must pass to grpc.Dial (or grpc.NewClient) so its calls negotiate the same
// wire codec the server forces via ForceServerCodec in server.go. Without
// this, a client would fall back to the "proto" content-subtype and fail to
// decode responses.
func ClientDialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wireCodecName))
}
