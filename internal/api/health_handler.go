package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/mediatask/internal/api/shared"
	"github.com/phrazzld/mediatask/internal/store"
)

// readyTimeout bounds the store ping behind /readyz
const readyTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	store  store.Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. A nil pinger makes readiness
// equivalent to liveness.
func NewHealthHandler(pinger store.Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  pinger,
		logger: logger.With("component", "health_handler"),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz by pinging the result store
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable,
			HealthResponse{Status: "unavailable", Store: "unreachable"})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Store: "ok"})
}
