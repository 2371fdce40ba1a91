package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/justinzzc/vision-box/internal/adapters/cache"
	detectoradapter "github.com/justinzzc/vision-box/internal/adapters/detector"
	eventadapter "github.com/justinzzc/vision-box/internal/adapters/events"
	httpadapter "github.com/justinzzc/vision-box/internal/adapters/http"
	"github.com/justinzzc/vision-box/internal/adapters/postgres"
	"github.com/justinzzc/vision-box/internal/adapters/security"
	"github.com/justinzzc/vision-box/internal/adapters/storage"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	worker     *eventadapter.Worker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping vision-box", "http_port", cfg.HTTPPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init redis client: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	signer, err := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	vault, err := security.NewHMACVault(cfg.TokenPepper)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init secret vault: %w", err)
	}

	var files ports.FileStore
	if cfg.StorageEndpoint != "" {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("ensure media bucket: %w", err)
		}
		files = minioStore
	} else {
		logger.Warn("object storage endpoint not configured, using in-process media store")
		files = storage.NewMemoryStore()
	}

	var det ports.Detector
	if cfg.DetectorURL != "" {
		det = detectoradapter.NewHTTPDetector(cfg.DetectorURL, files, cfg.DetectorTimeout)
	} else {
		logger.Warn("detector url not configured, using stub detector")
		det = detectoradapter.NewStubDetector()
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:      cfg.ServiceName,
			WorkerCount:      cfg.WorkerCount,
			DetectionTimeout: cfg.DetectorTimeout,
			StaleAfter:       cfg.StaleAfter,
			SweepInterval:    cfg.SweepInterval,
			MaxTaskRetries:   cfg.MaxTaskRetries,
			ServiceCacheTTL:  cfg.ServiceCacheTTL,
			UsageBufferSize:  cfg.UsageBufferSize,
		},
		Tasks:    postgres.NewTaskRepository(pool),
		Services: postgres.NewServiceRepository(pool),
		Tokens:   postgres.NewTokenRepository(pool),
		Usage:    postgres.NewUsageRepository(pool),
		Queue:    cacheadapter.NewRedisTaskQueue(redisClient, cfg.QueuePollTimeout),
		Detector: det,
		Files:    files,
		Limiter:  cacheadapter.NewRedisRateLimiter(redisClient),
		Vault:    vault,
	})

	ready := func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	handler := httpadapter.NewHandler(svc, signer, ready)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := eventadapter.NewWorker(logger, svc, cfg.WorkerCount, cfg.WorkerPoll, cfg.SweepInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		httpServer: httpServer,
		worker:     worker,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	drainCtx, drainCancel := context.WithCancel(ctx)
	go r.service.RunUsageDrain(drainCtx)

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	drainCancel()
	r.service.FlushUsage()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("detection worker started", "workers", r.cfg.WorkerCount)
	err := r.worker.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
