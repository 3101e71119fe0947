package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/config"
	"github.com/DeplanckeLab/scfair/pkg/logging"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Backend     string `json:"backend"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler handles health check, readiness and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	backend Pinger
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. backend may be nil, in which
// case readiness always succeeds.
func NewHealthHandler(cfg *config.Config, backend Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, backend: backend, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests. It never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /ready requests by pinging the search backend.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.backend.Ping(ctx); err != nil {
			h.logger.Warn("Search backend not ready", zap.String("error", logging.SanitizeError(err)))
			if err := WriteJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable", Error: logging.SanitizeError(err)}); err != nil {
				h.logger.Error("Failed to encode ready response", zap.Error(err))
			}
			return
		}
	}
	if err := WriteJSON(w, http.StatusOK, ReadyResponse{Status: "ok"}); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "scfair-facets",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Backend:     h.cfg.Backend.Kind,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
