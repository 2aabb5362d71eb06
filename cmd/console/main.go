package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-admin-console/api/swagger"
	"github.com/noah-isme/sma-admin-console/internal/entity"
	"github.com/noah-isme/sma-admin-console/internal/handler"
	"github.com/noah-isme/sma-admin-console/internal/middleware"
	"github.com/noah-isme/sma-admin-console/internal/repository"
	"github.com/noah-isme/sma-admin-console/internal/service"
	"github.com/noah-isme/sma-admin-console/pkg/cache"
	"github.com/noah-isme/sma-admin-console/pkg/config"
	"github.com/noah-isme/sma-admin-console/pkg/database"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	"github.com/noah-isme/sma-admin-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-admin-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-admin-console/pkg/middleware/requestid"
	"github.com/noah-isme/sma-admin-console/pkg/storage"
)

// @title SMA Admin Console API
// @version 1.0.0
// @description Edit, review and save workflow for the school administration console
// @BasePath /api/v1
// @schemes http

const uploadCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("console stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	checks := make(map[string]handler.ReadinessCheck)

	var redisClient *redis.Client
	if cfg.Sessions.Store == config.SessionStoreRedis || cfg.Lists.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close() //nolint:errcheck
		redisClient = client
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	var db *sqlx.DB
	if cfg.Audit.Enabled {
		conn, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer conn.Close() //nolint:errcheck
		if err := database.Migrate(ctx, conn); err != nil {
			return err
		}
		db = conn
		checks["postgres"] = conn.PingContext
	}

	blobs, err := newBlobStore(ctx, cfg.Uploads)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()
	registry := entity.Default()
	validator, err := entity.NewValidator()
	if err != nil {
		return err
	}
	backend := repository.NewRecordRepository(cfg.Backend, logr,
		repository.WithBlobReader(blobs),
		repository.WithBackendObserver(metrics.ObserveBackend),
	)

	var sessionStore service.SessionStore
	if cfg.Sessions.Store == config.SessionStoreRedis {
		sessionStore = repository.NewRedisSessionStore(redisClient, cfg.Sessions.TTL, logr)
	} else {
		sessionStore = repository.NewMemorySessionStore(cfg.Sessions.TTL)
	}

	bus := events.NewBus(events.Config{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
	})

	cacheSvc := service.NewCacheService(repository.NewRecordCacheRepository(redisClient), metrics, cfg.Lists.CacheTTL, logr, cfg.Lists.CacheEnabled)
	for _, topic := range []string{events.TopicRecordSaved, events.TopicRecordCreated, events.TopicRecordDeleted} {
		bus.Subscribe(topic, "list-cache", cacheSvc.HandleRecordEvent)
	}

	notifications := service.NewNotificationService(10, logr)
	bus.Subscribe(events.TopicRecordCreated, "notifications", notifications.HandleRecordCreated)

	auditSvc := service.NewAuditService(nil, registry, logr)
	if db != nil {
		auditSvc = service.NewAuditService(repository.NewChangeSetAuditRepository(db), registry, logr)
	}
	bus.Subscribe(events.TopicRecordSaved, "audit", auditSvc.HandleRecordSaved)

	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	uploads := service.NewUploadService(blobs, signer, service.UploadConfig{
		APIPrefix:      cfg.APIPrefix,
		MaxFileSize:    cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
		ThumbnailWidth: cfg.Uploads.ThumbnailWidth,
		Retention:      cfg.Uploads.Retention,
	}, logr)

	sessions := service.NewSessionService(registry, backend, sessionStore, service.SessionServiceConfig{
		LockTTL:                cfg.Sessions.LockTTL,
		SaveTimeout:            cfg.Sessions.SaveTimeout,
		ClearFeeStatusWhenPaid: cfg.Fees.ClearStatusWhenPaid,
	}, logr,
		service.WithSessionEvents(bus),
		service.WithSessionFiles(uploads),
		service.WithSessionCache(cacheSvc),
		service.WithSessionMetrics(metrics),
	)
	lists := service.NewListService(registry, backend, cacheSvc, validator, bus, metrics, service.ListConfig{
		DefaultPageSize: cfg.Lists.DefaultPageSize,
		MaxPageSize:     cfg.Lists.MaxPageSize,
	}, logr)

	bus.Start(ctx)
	defer bus.Stop()
	go sweepUploads(ctx, uploads, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Records:       handler.NewRecordHandler(lists),
		Sessions:      handler.NewSessionHandler(sessions),
		Uploads:       handler.NewUploadHandler(uploads, logr),
		Notifications: handler.NewNotificationHandler(notifications),
		Audit:         handler.NewAuditHandler(auditSvc),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "session_store", cfg.Sessions.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		return server.Close()
	}
	return nil
}

func newBlobStore(ctx context.Context, cfg config.UploadsConfig) (storage.BlobStore, error) {
	switch cfg.Driver {
	case config.BlobDriverS3:
		store, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3 uploads: %w", err)
		}
		return store, nil
	case config.BlobDriverLocal, "":
		store, err := storage.NewLocalStorage(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("init local uploads: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown uploads driver %q", cfg.Driver)
	}
}

func sweepUploads(ctx context.Context, uploads *service.UploadService, logr *zap.Logger) {
	ticker := time.NewTicker(uploadCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := uploads.Cleanup()
			if err != nil {
				logr.Warn("upload cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired uploads removed", zap.Int("count", len(removed)))
			}
		}
	}
}
