package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/profilesync/internal/api/grpc/context"
	"github.com/dtroode/profilesync/internal/api/grpc/router"
	grpcServer "github.com/dtroode/profilesync/internal/api/grpc/server"
	"github.com/dtroode/profilesync/internal/config"
	"github.com/dtroode/profilesync/internal/connectivity"
	"github.com/dtroode/profilesync/internal/entitlement"
	"github.com/dtroode/profilesync/internal/logger"
	"github.com/dtroode/profilesync/internal/model"
	"github.com/dtroode/profilesync/internal/repository/postgres"
	"github.com/dtroode/profilesync/internal/server"
	"github.com/dtroode/profilesync/internal/service"
	"github.com/dtroode/profilesync/internal/storage/memory"
	storage "github.com/dtroode/profilesync/internal/storage/minio"
	"github.com/dtroode/profilesync/internal/storage/sqlite"
	"github.com/dtroode/profilesync/internal/token"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync agent and its control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logger.NewWithFile(cfg.LogLevel, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize local storage: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close local storage", "error", err)
		}
	}()

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}
	defer db.Close()
	profiles := postgres.NewProfileRepository(db)

	entitlementConn, err := entitlement.Dial(cfg.Entitlements, logger)
	if err != nil {
		return err
	}
	defer entitlementConn.Close()
	entitlements := entitlement.NewClient(entitlementConn)

	monitor := connectivity.NewMonitor(connectivity.NewGRPCSignal(entitlementConn), logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	hook := logSyncEvents(logger)
	queue := service.NewQueue(ctx, store, logger,
		service.WithQueueKey(cfg.Storage.QueueKey),
		service.WithMaxRetries(cfg.Sync.MaxRetries),
		service.WithQueueHooks(hook),
	)
	executor := service.NewExecutor(profiles, entitlements, logger)
	scheduler := service.NewScheduler(ctx, queue, executor, monitor, store, logger,
		service.WithSyncInterval(cfg.Sync.Interval),
		service.WithStateKey(cfg.Storage.StateKey),
		service.WithSchedulerHooks(hook),
	)
	trials := service.NewTrialReconciler(profiles, entitlements, logger)
	profileSync := service.NewProfileSync(executor, queue, scheduler, monitor, trials, logger,
		service.WithOfflineQueue(cfg.Sync.EnableOfflineQueue),
		service.WithTrialDuration(cfg.Sync.TrialDurationDays),
	)

	scheduler.Start(ctx)

	r := router.New(profileSync, token.NewJWT(cfg.JWT.Secret, 0), grpcctx.NewManager(), logger)
	s := r.Register()
	reflection.Register(s)
	controlServer := grpcServer.NewGRPCServer(s, fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(controlServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	r.Shutdown()
	if err := controlServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", controlServer.Address())
	}
	wg.Wait()

	scheduler.Stop()
	scheduler.Flush()
	if err := queue.Flush(shutdownCtx); err != nil {
		logger.Error("failed to flush offline queue", "error", err)
	}

	logger.Info("shutdown complete", "queued_operations", queue.Len())
	return nil
}

// openStore opens the local key-value store selected by the storage backend.
func openStore(ctx context.Context, cfg *config.Config) (model.KeyValueStore, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		return memory.NewStore(), noClose, nil
	case config.StorageBackendMinio:
		minioClient, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		store, err := storage.NewClient(ctx, minioClient, cfg.Minio.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, noClose, nil
	default:
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func logSyncEvents(logger *logger.Logger) model.SyncHook {
	return func(e model.SyncEvent) {
		args := []any{
			"event", string(e.Kind),
			"operation_id", e.OperationID,
			"type", string(e.Type),
			"owner_id", e.OwnerID,
			"retry_count", e.RetryCount,
		}
		if e.Err != nil {
			logger.Warn("sync event", append(args, "error", e.Err.Error())...)
			return
		}
		logger.Info("sync event", args...)
	}
}
