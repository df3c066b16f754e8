// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/eventhub"
)

const defaultShutdownTimeout = 10 * time.Second

// RunFunc executes one task run. Implementations own the browser session for
// the duration of the call.
type RunFunc func(ctx context.Context, params agent.TaskParams) (agent.Result, error)

// Server is the HTTP and WebSocket front end. It allows a single run at a time.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	run      RunFunc
	hub      *eventhub.Hub
	bridge   *Bridge
	gatherer prometheus.Gatherer
	router   chi.Router
	busy     atomic.Bool
}

// New wires the hub, the bridge and the routes. gatherer may be nil, in which
// case /metrics serves the default registry.
func New(cfg config.ServerConfig, run RunFunc, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		run:      run,
		gatherer: gatherer,
	}
	// The hub routes client frames to the bridge, the bridge announces through the hub.
	s.bridge = NewBridge(cfg.InputTimeout, cfg.ConfirmTimeout, nil, logger)
	s.hub = eventhub.New(logger, eventhub.WithHandler(s.bridge.Handle))
	s.bridge.broadcast = s.hub.Broadcast
	s.router = s.routes()
	return s
}

// Hub returns the event hub. Its Run loop must be started by the caller.
func (s *Server) Hub() *eventhub.Hub { return s.hub }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The upgrade route stays outside the request logger.
	r.Get("/ws", s.hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(s.logger))
		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		r.Post("/api/task", s.handleTask)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// In-flight runs see ctx canceled through their request context.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("address", s.cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Received shutdown signal, shutting down gracefully...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
