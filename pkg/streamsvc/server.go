package streamsvc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/dialogiot/foshgw/pkg/logger"
)

// Server is the ReadSensorStream gRPC server, following the teacher's
// api/grpc Server shape: a net.Listener plus *grpc.Server managed by
// Start/Stop.
type Server struct {
	mu       sync.Mutex
	grpc     *grpc.Server
	listener net.Listener
	port     int
	subs     *BroadcastSubscriberSet
	log      *logger.Logger
	running  bool
}

// NewServer creates a Server that will listen on port and dispatch to subs.
func NewServer(port int, subs *BroadcastSubscriberSet, log *logger.Logger) *Server {
	return &Server{port: port, subs: subs, log: log.Component("streamsvc-server")}
}

// Start binds the listen port and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}
	s.listener = lis

	s.grpc = grpc.NewServer(grpc.ForceServerCodec(gobCodec{}))
	RegisterReadSensorServiceServer(s.grpc, &serviceImpl{subs: s.subs, log: s.log})

	go func() {
		if err := s.grpc.Serve(lis); err != nil {
			s.log.Warn("grpc server stopped serving", "error", err)
		}
	}()

	s.running = true
	s.log.Info("stream service listening", "port", s.port)
	return nil
}

// Stop gracefully stops the server, falling back to a hard stop if ctx
// expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}

	s.running = false
	return nil
}

// serviceImpl implements ReadSensorServiceServer by subscribing to subs and
// forwarding every event until the client disconnects or a send fails.
type serviceImpl struct {
	UnimplementedReadSensorServiceServer
	subs *BroadcastSubscriberSet
	log  *logger.Logger
}

func (svc *serviceImpl) ReadSensorStream(_ *ReadSensorStreamRequest, stream ReadSensorService_ReadSensorStreamServer) error {
	id, events := svc.subs.Subscribe()
	defer svc.subs.Unsubscribe(id)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.Send(toWireResponse(event)); err != nil {
				svc.log.Debug("subscriber send failed, pruning", "error", err)
				return err
			}
		}
	}
}

