// Package httpapi is the driver's own loopback operations HTTP surface —
// /healthz, /readyz, /metrics — distinct from Serval's REST API, which
// the driver only consumes (internal/restclient). Grounded on the
// teacher's internal/server package (health.go, metrics.go,
// middleware.go), trimmed to these three fixed routes.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

var startTime = time.Now()

// ChannelStatus is a coordinator-supplied snapshot of one channel's
// liveness, used by the readiness handler.
type ChannelStatus struct {
	Name      string
	Connected bool
}

// StatusSource is implemented by the coordinator; httpapi depends only on
// this narrow view, not on the coordinator package itself.
type StatusSource interface {
	Running() bool
	ChannelStatuses() []ChannelStatus
}

// Server is the loopback ops HTTP server.
type Server struct {
	addr    string
	status  StatusSource
	metrics *Registry
	logger  *slog.Logger
	http    *http.Server
}

// New builds a Server bound to addr (should be loopback-only, e.g.
// "127.0.0.1:9090"), reading liveness/readiness from status and metrics
// from the given Registry.
func New(addr string, status StatusSource, metrics *Registry, logger *slog.Logger) *Server {
	s := &Server{addr: addr, status: status, metrics: metrics, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           recoveryMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving until ctx is cancelled or an unrecoverable listen
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	running := s.status.Running()
	channels := s.status.ChannelStatuses()

	status := http.StatusOK
	statusStr := "ready"
	if !running {
		status = http.StatusServiceUnavailable
		statusStr = "not_running"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   statusStr,
		"running":  running,
		"channels": channels,
		"memory": map[string]interface{}{
			"alloc_mb": mem.Alloc / 1024 / 1024,
		},
		"goroutines": runtime.NumGoroutine(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(s.metrics.Render()))
}

func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("httpapi: panic recovered", "panic", rec, "path", r.URL.Path)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
