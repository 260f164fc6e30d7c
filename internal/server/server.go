// Package server exposes the four agents over HTTP for the n8n
// workflows: one endpoint per agent plus batch, session memory and
// health. Every error body is {"detail": ...} so existing callers keep
// parsing responses the same way.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sonagent/internal/agent"
	"sonagent/internal/config"
	"sonagent/internal/logging"
	"sonagent/internal/memory"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server hosts the agent API.
type Server struct {
	cfg  *config.Config
	svc  *agent.Service
	mem  *memory.Manager
	http *http.Server
}

// New wires the HTTP layer over an agent service and a session store.
func New(cfg *config.Config, svc *agent.Service, mem *memory.Manager) *Server {
	s := &Server{cfg: cfg, svc: svc, mem: mem}
	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler builds the routing table with the middleware chain applied.
// Exposed so tests can drive the full stack through httptest.
// Method checks live in the handlers: the "/" catchall that produces the
// JSON 404 also swallows the mux's automatic 405.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/agent/phanloai", post(s.handleClassify))
	mux.HandleFunc("/agent/create_order", post(s.handleCreateOrder))
	mux.HandleFunc("/agent/consulting", post(s.handleConsulting))
	mux.HandleFunc("/agent/check_order", post(s.handleCheckOrder))
	mux.HandleFunc("/agent/batch", post(s.handleBatch))
	mux.HandleFunc("/memory/{session_id}", s.handleMemory)
	mux.HandleFunc("/health", get(s.handleHealth))

	var h http.Handler = mux
	h = withRecovery(h)
	h = withCORS(h)
	h = withAccessLog(h)
	h = withRequestID(h)
	return h
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails. Cancellation drains in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serveErr := make(chan error, 1)
	logging.Server("API listening on %s", s.http.Addr)
	go func() {
		serveErr <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logging.Server("API stopped")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
