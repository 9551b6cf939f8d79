package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chat-api/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultAddr    = "0.0.0.0:8000"
	serviceName    = "chat-api"
	timeoutMessage = `{"detail":"Request timed out"}`
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer returns new Server struct with provided zap.SugaredLogger and storage.Store.
// store may be nil, API routes then answer 503 while "/" and "/test" keep working.
func NewServer(logger *zap.SugaredLogger, store storage.Store, opts ...Option) (*Server, error) {
	c := &config{
		httpServer: &http.Server{Addr: defaultAddr},
		timeoutMsg: timeoutMessage,
	}

	for _, o := range opts {
		o.apply(c)
	}

	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	if err := c.registry.Register(collectors.NewGoCollector()); err != nil {
		logger.Warnf("Go collector is not registered: %v", err)
	}

	m, err := newMetrics(c.registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	h := &handler{
		logger:      logger,
		store:       store,
		storeConfig: c.storeConfig,
	}
	c.handlers = h.routes()

	// order matters: the first option wraps innermost
	pipeline := []Option{
		applyEnforceJSON(),
		applyRequireStore(store),
		applyTimeout(),
		applyMetrics(m),
		applyLog(logger.Desugar()),
	}
	for _, o := range pipeline {
		o.apply(c)
	}

	c.handlers["GET /metrics"] = promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})

	for _, o := range []Option{registerHandlers(), applyCORS(), applyTracing(serviceName)} {
		o.apply(c)
	}

	return &Server{
		logger:        logger,
		httpServer:    c.httpServer,
		afterShutdown: c.afterShutdown,
	}, nil
}

// Handler returns root http.Handler of the server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct.
// It blocks until the server fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("s.httpServer.ListenAndServe: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections, waits for active requests
// and then calls functions registered with RegisterAfterShutdown
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("s.httpServer.Shutdown: %w", err)
	}
	s.logger.Info("HTTP server is stopped")

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
