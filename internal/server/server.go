// Package server exposes the sanitization engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avsanitize/internal/config"
	"github.com/vyrodovalexey/avsanitize/internal/fieldpath"
	"github.com/vyrodovalexey/avsanitize/internal/observability"
	"github.com/vyrodovalexey/avsanitize/internal/sanitize"
)

// RequestIDHeader is the header name for request ID.
const RequestIDHeader = "X-Request-ID"

// Server serves sanitize requests over HTTP. The active ruleset can be
// swapped at runtime, which the config watcher uses for hot reload.
type Server struct {
	engine  *sanitize.Engine
	logger  observability.Logger
	cfg     *config.Config
	httpSrv *http.Server

	mu    sync.RWMutex
	rules sanitize.Ruleset
}

// New creates a new Server around an engine and its configuration.
func New(engine *sanitize.Engine, cfg *config.Config, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		engine: engine,
		logger: logger,
		cfg:    cfg,
	}
	s.SetRules(cfg.Rules)

	return s
}

// SetRules replaces the active ruleset.
func (s *Server) SetRules(rules map[string]string) {
	ruleset := make(sanitize.Ruleset, len(rules))
	for path, pipeline := range rules {
		ruleset[path] = pipeline
	}

	s.mu.Lock()
	s.rules = ruleset
	s.mu.Unlock()

	s.logger.Info("ruleset updated", observability.Int("rules", len(ruleset)))
}

// activeRules returns a copy of the active ruleset so that a concurrent
// SetRules cannot interleave with an in-flight request.
func (s *Server) activeRules() sanitize.Ruleset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sanitize.Ruleset(fieldpath.DeepCopy(s.rules))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.requestLogger())

	router.POST("/v1/sanitize", s.handleSanitize)
	router.GET("/healthz", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		router.GET(s.cfg.Metrics.Path, gin.WrapH(s.metricsHandler()))
	}

	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			observability.String("address", s.cfg.Server.Address))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), s.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpSrv.Shutdown(shutdownCtx)
}

// sanitizeRequest is the request body for POST /v1/sanitize. Rules are
// optional; when omitted the configured ruleset applies.
type sanitizeRequest struct {
	Record map[string]interface{} `json:"record" binding:"required"`
	Rules  map[string]string      `json:"rules"`
}

// handleSanitize runs one record through the active or supplied ruleset.
func (s *Server) handleSanitize(c *gin.Context) {
	var req sanitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules := s.activeRules()
	if len(req.Rules) > 0 {
		rules = make(sanitize.Ruleset, len(req.Rules))
		for path, pipeline := range req.Rules {
			rules[path] = pipeline
		}
	}

	ctx := c.Request.Context()
	record, err := s.engine.Sanitize(ctx, rules, req.Record)
	if err != nil {
		s.logger.WithContext(ctx).Error("sanitize failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": record})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// metricsHandler builds the Prometheus handler on a dedicated registry,
// bridging the engine's promauto collectors onto it.
func (s *Server) metricsHandler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := sanitize.GetMetrics()
	metrics.MustRegister(registry)
	metrics.Init()

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// requestID ensures every request carries an identifier, generating one
// when the client did not send X-Request-ID, and echoes it back in the
// response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx := observability.ContextWithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// requestLogger logs one line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.WithContext(c.Request.Context()).Info("request",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)))
	}
}
