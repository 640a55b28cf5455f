package entitlement

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/timeout"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dtroode/profilesync/internal/config"
	"github.com/dtroode/profilesync/internal/logger"
)

// defaultTimeout is used when the config leaves the timeout unset.
const defaultTimeout = 10 * time.Second

// Dial creates the client channel to the entitlement service. The channel
// connects lazily.
func Dial(cfg config.Entitlements, log *logger.Logger, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	transport := insecure.NewCredentials()
	if cfg.UseTLS {
		transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	callTimeout := cfg.Timeout
	if callTimeout <= 0 {
		callTimeout = defaultTimeout
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithChainUnaryInterceptor(
			timeout.UnaryClientInterceptor(callTimeout),
			logging.UnaryClientInterceptor(InterceptorLogger(log), logging.WithLogOnEvents(logging.FinishCall)),
		),
	}
	if cfg.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerToken{token: cfg.Token, secure: cfg.UseTLS}))
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement client: %w", err)
	}
	return conn, nil
}

// InterceptorLogger adapts the service logger to go-grpc-middleware logging.
func InterceptorLogger(l *logger.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

type bearerToken struct {
	token  string
	secure bool
}

func (b bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerToken) RequireTransportSecurity() bool {
	return b.secure
}
