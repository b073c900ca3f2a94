package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamgate/internal/core/ports"
	"streamgate/internal/core/services"
	httphandlers "streamgate/internal/handlers/http"
	"streamgate/internal/infrastructure/audit"
	"streamgate/internal/infrastructure/directory"
	"streamgate/internal/infrastructure/events"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/internal/infrastructure/monitoring"
	"streamgate/internal/infrastructure/pipeline"
	"streamgate/internal/infrastructure/registry"
	"streamgate/pkg/cache"
	"streamgate/pkg/config"
	"streamgate/pkg/logger"
	"streamgate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	configPath := os.Getenv("STREAMGATE_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// Config errors happen before the logger exists.
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Camera directory
	var cameraDirectory ports.CameraDirectory
	switch cfg.Directory.Mode {
	case "http":
		httpDir := directory.NewHTTPDirectory(cfg.Directory.BaseURL, cfg.Directory.Timeout, log)
		cameraDirectory = directory.NewCachedDirectory(httpDir, cache.NewCache(cfg.Directory.CacheTTL))
	default:
		log.Warn("directory.mode=memory: camera records must be seeded by the operator API")
		cameraDirectory = directory.NewMemoryDirectory()
	}

	// Decryption keyring
	var keyring *directory.Keyring
	if cfg.Directory.KeyringPath != "" {
		keyring, err = directory.LoadKeyring(cfg.Directory.KeyringPath)
		if err != nil {
			log.Fatalw("failed to load keyring", "path", cfg.Directory.KeyringPath, "error", err)
		}
	} else {
		keyring = directory.NewKeyring()
		log.Warn("no keyring configured: credential resolution will fail for encrypted cameras")
	}

	// Audit pipeline
	var baseSink ports.AuditSink
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisSink := audit.NewRedisSink(redisClient, cfg.Redis.AuditStream, cfg.Redis.AuditMaxLen)
		baseSink = redisSink

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisSink.Ping(pingCtx); err != nil {
			log.Warnw("redis unreachable at startup, audit events will retry", "error", err)
		}
		cancel()
	} else {
		baseSink = audit.NewMemorySink()
	}
	auditDispatcher := audit.NewDispatcher(baseSink, cfg.Audit.BatchSize, cfg.Audit.FlushInterval, log)

	// Metrics
	var stats ports.StatsRecorder
	if cfg.Monitoring.PrometheusEnabled {
		stats = monitoring.NewPrometheusCollector()
	} else {
		stats = monitoring.NopStats{}
	}

	// Core services
	sessionRegistry := registry.NewShardedRegistry()
	hub := events.NewHub()
	resolver := services.NewCredentialResolver(keyring, log)
	tokens := services.NewTokenService(cfg.Auth.StreamTokenSecret, cfg.Auth.StreamTokenTTL)
	builder := pipeline.NewBuilder()
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		BinaryPath:   cfg.Transcoder.BinaryPath,
		StartTimeout: cfg.Transcoder.StartTimeout,
	}, log)
	sampler := pipeline.NewHealthSampler()

	manager := services.NewSessionManager(
		sessionRegistry, resolver, builder, runner, sampler,
		tokens, auditDispatcher, hub, stats,
		services.SessionManagerConfig{
			OutputBaseDir:       cfg.Transcoder.OutputDir,
			TokenTTL:            cfg.Auth.StreamTokenTTL,
			StopGracePeriod:     cfg.Transcoder.StopGracePeriod,
			MaxSessionsPerStore: cfg.Streaming.MaxSessionsPerStore,
		},
		log,
	)

	// Background loops
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	collector := services.NewHealthCollector(sessionRegistry, sampler, hub, cfg.Streaming.HealthInterval, log)
	collector.Start(rootCtx)

	reaper := services.NewIdleReaper(sessionRegistry, manager, cfg.Streaming.ReapInterval, cfg.Streaming.IdleTimeout, log)
	reaper.Start(rootCtx)

	// HTTP handlers
	streamHandler := httphandlers.NewStreamHandler(manager, cameraDirectory, tokens, cfg.Auth.StreamTokenTTL, log)
	deliveryHandler := httphandlers.NewDeliveryHandler(manager, cameraDirectory, tokens, auditDispatcher, stats, log)
	eventsHandler := httphandlers.NewEventsHandler(manager, tokens, hub, stats, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Control plane: callers authenticate with the platform identity token.
	api := router.Group("/api/v1")
	api.Use(middleware.IdentityMiddleware(cfg.Auth.IdentitySecret))
	streamHandler.RegisterRoutes(api)

	// Delivery plane: artifact and event routes carry the stream token
	// themselves because HLS players cannot send Authorization headers.
	deliveryHandler.RegisterRoutes(router)
	eventsHandler.RegisterRoutes(router)

	healthChecker := monitoring.NewHealthChecker()
	if redisClient != nil {
		rc := redisClient
		healthChecker.AddCheck("redis", func(ctx context.Context) (bool, error) {
			err := rc.Ping(ctx).Err()
			return err == nil, err
		}, 10*time.Second, 2*time.Second)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"sessions":  sessionRegistry.Len(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("starting stream gateway on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down stream gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop background loops first so nothing races the session teardown.
	reaper.Stop()
	collector.Stop()

	// Tear down every live transcoder before closing the listener: orphaned
	// ffmpeg processes would keep pulling from cameras after we exit.
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Errorw("session shutdown incomplete", "error", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown failed", "error", err)
	}

	if err := auditDispatcher.Close(shutdownCtx); err != nil {
		log.Warnw("audit dispatcher flush failed", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracer shutdown failed", "error", err)
	}

	log.Info("stream gateway stopped")
}
