package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/profilesync/internal/api/grpc/handler"
	"github.com/dtroode/profilesync/internal/api/grpc/middleware"
	"github.com/dtroode/profilesync/internal/api/grpc/syncapi"
	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
)

// Router represents the gRPC router of the control API.
// It manages service registration and middleware configuration.
type Router struct {
	profileSync    handler.ProfileSyncService
	tokens         middleware.TokenParser
	contextManager model.ContextManager
	logger         *logger.Logger
	health         *health.Server
}

// New creates new gRPC Router instance.
func New(
	profileSync handler.ProfileSyncService,
	tokens middleware.TokenParser,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		profileSync:    profileSync,
		tokens:         tokens,
		contextManager: contextManager,
		logger:         logger,
		health:         health.NewServer(),
	}
}

// authSkip reports whether the call requires a bearer token.
// Health checks are served without one.
func authSkip(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+healthpb.Health_ServiceDesc.ServiceName+"/")
}

// Register registers all gRPC services and middleware.
//
// Returns the configured gRPC server instance.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokens, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
		grpc.ChainStreamInterceptor(
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
	)
	r.registerProfileSyncRoutes(s)
	r.registerHealthRoutes(s)

	return s
}

// Shutdown marks every service as not serving.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) registerProfileSyncRoutes(server *grpc.Server) {
	profileSyncHandler := handler.NewProfileSync(r.profileSync, r.contextManager, r.logger)
	syncapi.RegisterProfileSyncServer(server, profileSyncHandler)
	r.health.SetServingStatus(syncapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (r *Router) registerHealthRoutes(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, r.health)
}
