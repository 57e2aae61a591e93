package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mentor/internal/api/health"
	"mentor/internal/metrics"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port        int
	ServiceName string
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, handlers *Handlers, healthHandler *health.Handler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	// Conversation
	mux.HandleFunc("POST /chat/stream", handlers.HandleChatStream)

	// Session state
	mux.HandleFunc("POST /tasks/update", handlers.HandleUpdateTasks)
	mux.HandleFunc("GET /sessions/{id}/state", handlers.HandleGetState)
	mux.HandleFunc("GET /sessions/{id}/professor-type", handlers.HandleGetProfessorType)
	mux.HandleFunc("POST /sessions/{id}/professor-type", handlers.HandleSetProfessorType)
	mux.HandleFunc("GET /sessions/{id}/events", handlers.HandleSessionEvents)
	mux.HandleFunc("DELETE /sessions/{id}", handlers.HandleDeleteSession)

	// Document pipeline
	mux.HandleFunc("POST /data/upload", handlers.HandleUpload)
	mux.HandleFunc("GET /data/textbook", handlers.HandleGetTextbook)

	// Root endpoint (service info)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","status":"running"}`, cfg.ServiceName)
	})

	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No write timeout: chat streams and event sockets stay open for
		// the length of a turn or longer.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
