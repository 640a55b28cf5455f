package connectivity

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/profilesync/internal/model"
)

var _ model.NetworkSignal = (*GRPCSignal)(nil)

const defaultProbeTimeout = 3 * time.Second

// GRPCSignal derives network state from a gRPC client channel. The channel is
// connected when Ready; reachability comes from the standard health service.
type GRPCSignal struct {
	conn         *grpc.ClientConn
	health       healthpb.HealthClient
	service      string
	probeTimeout time.Duration
}

// GRPCSignalOption configures a GRPCSignal.
type GRPCSignalOption func(*GRPCSignal)

// WithHealthService sets the service name sent in health checks.
func WithHealthService(name string) GRPCSignalOption {
	return func(s *GRPCSignal) { s.service = name }
}

// WithProbeTimeout bounds each health check.
func WithProbeTimeout(d time.Duration) GRPCSignalOption {
	return func(s *GRPCSignal) { s.probeTimeout = d }
}

// NewGRPCSignal creates a GRPCSignal over conn.
func NewGRPCSignal(conn *grpc.ClientConn, opts ...GRPCSignalOption) *GRPCSignal {
	s := &GRPCSignal{
		conn:         conn,
		health:       healthpb.NewHealthClient(conn),
		probeTimeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsConnected reports whether the channel is Ready. An idle channel is asked
// to connect so a later call can observe the result.
func (s *GRPCSignal) IsConnected(context.Context) (bool, error) {
	state := s.conn.GetState()
	switch state {
	case connectivity.Idle:
		s.conn.Connect()
		return false, nil
	case connectivity.Shutdown:
		return false, fmt.Errorf("grpc channel is shut down")
	default:
		return state == connectivity.Ready, nil
	}
}

// IsInternetReachable runs a health check. It returns nil when the remote does
// not implement the health service.
func (s *GRPCSignal) IsInternetReachable(ctx context.Context) (*bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: s.service})
	if err != nil {
		switch status.Code(err) {
		case codes.Unimplemented:
			return nil, nil
		case codes.Unavailable, codes.DeadlineExceeded:
			reachable := false
			return &reachable, nil
		default:
			return nil, fmt.Errorf("health check failed: %w", err)
		}
	}

	reachable := resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	return &reachable, nil
}

// Subscribe watches channel state changes until unsubscribe is called.
func (s *GRPCSignal) Subscribe(listener func(model.NetworkState)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		state := s.conn.GetState()
		for s.conn.WaitForStateChange(ctx, state) {
			state = s.conn.GetState()
			if state == connectivity.Shutdown {
				listener(model.NetworkState{Connected: false})
				return
			}

			ns := model.NetworkState{Connected: state == connectivity.Ready}
			if ns.Connected {
				if reachable, err := s.IsInternetReachable(ctx); err == nil {
					ns.Reachable = reachable
				}
			} else if state == connectivity.Idle {
				s.conn.Connect()
			}
			listener(ns)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
