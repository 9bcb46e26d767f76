package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/api/handlers"
	"github.com/stemtutor/tutorflow/checkpoint"
	"github.com/stemtutor/tutorflow/collab"
	"github.com/stemtutor/tutorflow/config"
	"github.com/stemtutor/tutorflow/internal/metrics"
	"github.com/stemtutor/tutorflow/internal/retry"
	"github.com/stemtutor/tutorflow/internal/server"
	"github.com/stemtutor/tutorflow/internal/telemetry"
	"github.com/stemtutor/tutorflow/ratelimit"
	"github.com/stemtutor/tutorflow/tutor"
)

// Server wires the tutoring service, its stores and the HTTP surface.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	tutorHandler  *handlers.TutorHandler
	healthHandler *handlers.HealthHandler

	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	redisClient     *redis.Client
	checkpointStore checkpoint.Store
	limiterStore    ratelimit.Store

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server over a loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// Start brings up the stores, the service and both HTTP listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("tutorflow", prometheus.DefaultRegisterer, s.logger)

	if err := s.initStores(); err != nil {
		return fmt.Errorf("failed to init stores: %w", err)
	}

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("store_backend", s.cfg.Store.Backend),
	)

	return nil
}

// initStores selects the checkpoint backend and the rate-limit bucket store.
// The redis backend shares one client between both so the quota is enforced
// cluster-wide; other backends keep buckets in process memory.
func (s *Server) initStores() error {
	switch s.cfg.Store.Backend {
	case "redis":
		store, err := checkpoint.NewRedisStore(checkpoint.RedisOptions{
			Addr:      s.cfg.Redis.Addr,
			Password:  s.cfg.Redis.Password,
			DB:        s.cfg.Redis.DB,
			PoolSize:  s.cfg.Redis.PoolSize,
			KeyPrefix: s.cfg.Redis.KeyPrefix,
			TTL:       s.cfg.Store.CheckpointTTL,
		})
		if err != nil {
			return err
		}
		s.checkpointStore = store
		s.redisClient = store.Client()
		s.limiterStore = ratelimit.NewRedisStore(s.redisClient, s.cfg.Redis.KeyPrefix)

	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(s.cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		s.checkpointStore = store
		s.limiterStore = ratelimit.NewMemoryStore()

	case "memory":
		s.checkpointStore = checkpoint.NewMemoryStore()
		s.limiterStore = ratelimit.NewMemoryStore()

	default:
		return fmt.Errorf("unknown store backend %q", s.cfg.Store.Backend)
	}

	return nil
}

func (s *Server) initHandlers() error {
	modelClient := collab.NewOpenAIClient(collab.OpenAIConfig{
		APIKey:  s.cfg.Model.APIKey,
		BaseURL: s.cfg.Model.BaseURL,
		Model:   s.cfg.Model.Name,
		Timeout: s.cfg.Model.Timeout,
	})
	collaborators := collab.NewModelCollaborators(modelClient)

	adapters := collab.NewAdapters(
		collaborators, collaborators, collaborators, collaborators, collaborators,
		&retry.Policy{
			MaxAttempts:  s.cfg.Collaborator.MaxAttempts,
			InitialDelay: s.cfg.Collaborator.InitialDelay,
			MaxDelay:     s.cfg.Collaborator.MaxDelay,
			Multiplier:   s.cfg.Collaborator.Multiplier,
		},
		s.logger,
	)

	limiter := ratelimit.NewLimiter(s.limiterStore, ratelimit.Config{
		FreeLimit: s.cfg.RateLimit.FreeLimit,
		ProLimit:  s.cfg.RateLimit.ProLimit,
		Window:    s.cfg.RateLimit.Window,
		FailOpen:  s.cfg.RateLimit.FailOpen,
	}, s.logger)
	limiter.WithObserver(
		s.metricsCollector.RecordRateLimitDecision,
		s.metricsCollector.RecordRateLimiterFailure,
	)

	service, err := tutor.NewService(adapters, s.checkpointStore, limiter, s.cfg.Routing, s.logger)
	if err != nil {
		return err
	}
	service.WithStepObserver(s.metricsCollector.RecordStep)
	service.WithMetrics(s.metricsCollector)

	s.tutorHandler = handlers.NewTutorHandler(service, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.redisClient != nil {
		client := s.redisClient
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)

	mux.HandleFunc("POST /v1/analyze", s.tutorHandler.HandleAnalyze)
	mux.HandleFunc("POST /v1/resume", s.tutorHandler.HandleResume)
	mux.HandleFunc("GET /v1/state/{id}", s.tutorHandler.HandleState)
	mux.HandleFunc("GET /v1/quota/{identity}", s.tutorHandler.HandleQuota)
	mux.HandleFunc("DELETE /v1/quota/{identity}", s.tutorHandler.HandleQuotaReset)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RequestsPerSecond, s.cfg.Server.Burst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal, then cleans up.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops both listeners and closes the stores.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.checkpointStore != nil {
		if err := s.checkpointStore.Close(); err != nil {
			s.logger.Error("checkpoint store close error", zap.Error(err))
		}
	}
	// With the redis backend both stores share one client, which the
	// checkpoint store close above already released.
	if s.limiterStore != nil && s.redisClient == nil {
		if err := s.limiterStore.Close(); err != nil {
			s.logger.Error("rate limit store close error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
