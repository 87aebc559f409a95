package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"corvus-hq/rookery/pkg/config"
	"corvus-hq/rookery/pkg/proxy/handlers"
	"corvus-hq/rookery/pkg/proxy/middleware"
	"corvus-hq/rookery/pkg/quota"
	"corvus-hq/rookery/pkg/resilience"
	"corvus-hq/rookery/pkg/security/auth"
	"corvus-hq/rookery/pkg/session"
	"corvus-hq/rookery/pkg/store"
	"corvus-hq/rookery/pkg/telemetry/health"
	"corvus-hq/rookery/pkg/telemetry/logging"
	"corvus-hq/rookery/pkg/telemetry/metrics"
	"corvus-hq/rookery/pkg/upstream"
)

// Server owns the HTTP listener and the background machinery behind it:
// the session pool with its health loop and cookie importer, the retry
// coordinator, and the quota limiter. Start blocks until shutdown.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	gateway     store.Gateway
	pool        *session.Pool
	healthLoop  *session.HealthLoop
	importer    *session.Importer
	coordinator *resilience.Coordinator
	collector   *metrics.Collector
	checker     *health.Checker
	limiter     *quota.Limiter
	validator   *auth.Validator

	httpServer   *http.Server
	shutdownOnce sync.Once
	shutdownErr  error
}

// New assembles the full server from configuration. The store is opened and
// the pool projection loaded here; background loops start in Start.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	gateway, err := store.NewSQLite(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	pool := session.NewPool(gateway, cfg.Pool, cfg.Upstream.Provider, logger, collector)
	if err := pool.Refresh(context.Background()); err != nil {
		gateway.Close()
		return nil, fmt.Errorf("load session pool: %w", err)
	}

	client := upstream.NewClient(cfg.Upstream, logger)
	coordinator := resilience.NewCoordinator(pool, client, gateway, cfg.Resilience, cfg.Upstream.Provider, logger, collector)

	limiter, err := quota.NewLimiter(cfg.Quota, logger)
	if err != nil {
		gateway.Close()
		return nil, fmt.Errorf("init quota limiter: %w", err)
	}

	checker := health.NewChecker()
	checker.Register(health.DatabaseCheck(gateway))
	checker.Register(health.SessionPoolCheck(func() (int, int) {
		stats := pool.Stats()
		return stats.Total, stats.Healthy
	}))
	checker.Register(health.CircuitCheck(func() string {
		return coordinator.Breaker().State().String()
	}))

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		gateway:     gateway,
		pool:        pool,
		healthLoop:  session.NewHealthLoop(pool, cfg.Pool.HealthCheckInterval, logger),
		coordinator: coordinator,
		collector:   collector,
		checker:     checker,
		limiter:     limiter,
		validator:   auth.NewValidator(cfg.Auth.APIKeyList()),
	}
	if cfg.Pool.ImportDir != "" {
		s.importer = session.NewImporter(pool, cfg.Pool.ImportDir, logger)
	}
	return s, nil
}

// Start runs the background loops and serves HTTP until the context is
// canceled, a signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.healthLoop.Start(ctx); err != nil {
		return fmt.Errorf("start health loop: %w", err)
	}
	if s.importer != nil {
		if err := s.importer.Start(ctx); err != nil {
			return fmt.Errorf("start cookie importer: %w", err)
		}
	}

	s.httpServer = &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening",
			"address", s.cfg.Server.ListenAddress,
			"provider", s.cfg.Upstream.Provider,
			"api_keys", s.validator.KeyCount(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	case sig := <-sigCh:
		s.logger.Info("signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		s.Shutdown()
		return fmt.Errorf("listener failed: %w", err)
	}
	return s.Shutdown()
}

// Shutdown stops the server: the listener drains first so in-flight
// requests can still reach the pool and store, then the background loops
// stop, and the store closes last.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Warn("listener drain incomplete", "error", err)
				s.shutdownErr = err
			}
		}

		s.healthLoop.Stop()
		if s.importer != nil {
			s.importer.Stop()
		}
		if err := s.limiter.Close(); err != nil {
			s.logger.Warn("quota limiter close failed", "error", err)
		}
		if err := s.gateway.Close(); err != nil {
			s.logger.Warn("store close failed", "error", err)
		}
		s.logger.Info("shutdown complete")
	})
	return s.shutdownErr
}

// routes builds the mux and wraps it in the middleware chain. The metrics
// and health endpoints skip auth and quota so probes and scrapes do not
// consume keys.
func (s *Server) routes() http.Handler {
	chat := handlers.NewChatHandler(s.coordinator, s.collector, s.logger)
	admin := handlers.NewAdminHandler(s.pool, s.logger)
	models := handlers.NewModelsHandler(nil)

	authed := func(h http.Handler, deadline time.Duration) http.Handler {
		return middleware.Chain(h,
			middleware.Timeout(deadline),
			middleware.Auth(s.validator, s.logger),
			middleware.Quota(s.limiter),
		)
	}
	// The chat deadline is the retry budget (attempt timeouts plus
	// backoff); everything else answers well within the write timeout.
	chatDeadline := s.cfg.RequestBudget()
	adminDeadline := s.cfg.Server.WriteTimeout - time.Second

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", authed(chat, chatDeadline))
	mux.Handle("GET /v1/models", authed(models, adminDeadline))

	mux.Handle("GET /admin/sessions", authed(http.HandlerFunc(admin.List), adminDeadline))
	mux.Handle("POST /admin/sessions", authed(http.HandlerFunc(admin.Create), adminDeadline))
	mux.Handle("GET /admin/sessions/stats", authed(http.HandlerFunc(admin.Stats), adminDeadline))
	mux.Handle("GET /admin/sessions/{id}", authed(http.HandlerFunc(admin.Get), adminDeadline))
	mux.Handle("POST /admin/sessions/{id}/quarantine", authed(http.HandlerFunc(admin.Quarantine), adminDeadline))
	mux.Handle("POST /admin/sessions/{id}/revoke", authed(http.HandlerFunc(admin.Revoke), adminDeadline))
	mux.Handle("POST /admin/sessions/{id}/activate", authed(http.HandlerFunc(admin.Activate), adminDeadline))

	mux.Handle("GET /health", s.checker.Handler())
	if s.cfg.Telemetry.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}

	return middleware.Chain(mux,
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(),
	)
}
