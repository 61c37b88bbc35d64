package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/ingest"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/health"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/metrics"
)

// RecordReader looks up single records.
type RecordReader interface {
	GetByID(ctx context.Context, id string) (*prospect.CandidateRecord, bool, error)
}

// Processor handles one candidate batch message.
type Processor interface {
	Process(ctx context.Context, msg *ingest.Message) (*ingest.Summary, error)
}

// Sweeper runs one retention pass over a partition.
type Sweeper interface {
	Sweep(ctx context.Context, surfaceGUID string, candidateType prospect.CandidateType, now time.Time, maxAgeMinutes int) (prospect.EvictionResult, error)
}

// Dependencies are the components the server routes to. Metrics and
// Version are optional.
type Dependencies struct {
	Records   RecordReader
	Processor Processor
	Sweeper   Sweeper
	Checker   *health.Checker
	Metrics   *metrics.Collector
	Version   health.VersionInfo

	// MaxAgeMinutes returns the current staleness threshold. It is read per
	// request so that configuration reloads apply without a restart.
	MaxAgeMinutes func() int
}

// Server is the HTTP server of the prospects service.
type Server struct {
	config    *config.ServerConfig
	telemetry *config.TelemetryConfig
	deps      Dependencies

	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	clock      func() time.Time

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server and builds its routes.
func New(cfg *config.ServerConfig, telemetry *config.TelemetryConfig, deps Dependencies) (*Server, error) {
	if cfg == nil || telemetry == nil {
		return nil, errors.New("server and telemetry config are required")
	}
	if deps.Records == nil || deps.Processor == nil || deps.Sweeper == nil || deps.Checker == nil {
		return nil, errors.New("records, processor, sweeper and checker are required")
	}
	if deps.MaxAgeMinutes == nil {
		deps.MaxAgeMinutes = func() int { return config.DefaultMaxAgeMinutes }
	}

	s := &Server{
		config:    cfg,
		telemetry: telemetry,
		deps:      deps,
		logger:    slog.Default().With("component", "server"),
		clock:     time.Now,
	}
	s.engine = s.setupRoutes()

	return s, nil
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting at most the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("http server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// setupRoutes configures routes and the middleware chain.
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()

	r.Use(
		recovery(s.logger),
		requestID(),
		tracingMiddleware(),
		s.metricsMiddleware(),
		requestLogger(s.logger),
	)

	api := r.Group("/v1")
	{
		api.POST("/batches", s.handleIngest)
		api.POST("/sweeps", s.handleSweep)
		api.GET("/candidates/:id", s.handleGetCandidate)
	}

	paths := s.telemetry.Health
	r.GET(paths.LivenessPath, gin.WrapF(s.deps.Checker.LivenessHandler()))
	r.HEAD(paths.LivenessPath, gin.WrapF(s.deps.Checker.LivenessHandler()))
	r.GET(paths.ReadinessPath, gin.WrapF(s.deps.Checker.ReadinessHandler()))
	r.GET("/version", gin.WrapF(health.VersionHandler(s.deps.Version)))

	if s.deps.Metrics != nil {
		r.GET(s.telemetry.Metrics.Path, gin.WrapH(s.deps.Metrics.Handler()))
	}

	return r
}

