package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mediastream/models"
)

// Pinger is implemented by dependencies that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler builds a handler that pings every named check on readiness.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// Liveness reports that the process is serving requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// Readiness pings each dependency with a short timeout.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("health.not_ready", "check", name, "err", err)
			writeEnvelope(w, r, http.StatusServiceUnavailable, models.Fail(name+" not ready"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ready"})
}
