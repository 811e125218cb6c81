// Package handler provides the HTTP surface of the cache daemon: the edge
// artifact endpoint with request coalescing, the session artifact
// endpoints, and stats/health monitoring endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rendercache/rendercache/internal/cache"
	"github.com/rendercache/rendercache/internal/metrics"
	"github.com/rendercache/rendercache/internal/storage"
	"github.com/rendercache/rendercache/pkg/types"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// MaxArtifactBytes caps the request body accepted by the session
	// write endpoint.
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes" json:"max_artifact_bytes"`
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:          "localhost:8080",
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     30 * time.Second,
		IdleTimeout:      60 * time.Second,
		MaxArtifactBytes: 32 * 1024 * 1024,
	}
}

// Server serves artifacts from the edge cache, persisting session renders
// through the session cache and fetching misses from the origin.
type Server struct {
	httpServer *http.Server
	edge       *cache.EdgeCache
	sessions   *cache.SessionCache
	origin     storage.Origin
	collector  *metrics.Collector
	config     ServerConfig
	logger     *slog.Logger
}

// NewServer creates the HTTP server. sessions and collector may be nil
// when the corresponding tier is disabled.
func NewServer(config ServerConfig, edge *cache.EdgeCache, sessions *cache.SessionCache, origin storage.Origin, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		edge:      edge,
		sessions:  sessions,
		origin:    origin,
		collector: collector,
		config:    config,
		logger:    logger.With("component", "handler"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/artifacts/", s.handleArtifact)
	mux.HandleFunc("/sessions/", s.handleSessions)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting artifact server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a background goroutine.
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("artifact server failed", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down artifact server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := map[string]interface{}{
		"edge":      s.edge.Stats(),
		"timestamp": time.Now(),
	}
	if s.sessions != nil {
		response["session"] = s.sessions.RuntimeState()
	}

	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	healthy := s.sessions == nil || s.sessions.Available()

	statusCode := http.StatusOK
	status := "healthy"
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		status = "degraded"
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// Helper methods

func (s *Server) recordRequest(outcome string) {
	if s.collector != nil {
		s.collector.RecordRequest(outcome)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}

func (s *Server) writeEntry(w http.ResponseWriter, entry *types.CacheEntry, cacheStatus string) {
	w.Header().Set("Content-Type", entry.ContentType)
	w.Header().Set("X-Cache", cacheStatus)
	if entry.ETag != "" {
		w.Header().Set("ETag", entry.ETag)
	}
	if !entry.LastModified.IsZero() {
		w.Header().Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(entry.Content); err != nil {
		s.logger.Error("failed to write artifact body", "key", entry.Key, "error", err)
	}
}
