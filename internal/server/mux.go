// Package server provides HTTP server construction for teammate-sync.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CristianUrbainski/teammate-android/internal/auth"
)

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Verifier   *auth.Verifier
	MCPHandler http.Handler

	// Gatherer, when set, is served unauthenticated at /metrics.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewMux builds the HTTP mux. The MCP endpoint is protected by API key
// middleware.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)

	if cfg.MCPHandler != nil {
		mux.Handle("/mcp", auth.Middleware(cfg.Verifier, cfg.Logger)(cfg.MCPHandler))
	}

	if cfg.Gatherer != nil {
		mux.Handle("/metrics", MetricsHandler(cfg.Gatherer))
	}

	return mux
}

// MetricsHandler serves g in the Prometheus exposition format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// New wraps handler in an http.Server with the timeouts every listener
// uses.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
