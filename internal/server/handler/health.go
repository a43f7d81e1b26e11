package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// BotCounter reports registry occupancy for the health endpoint.
type BotCounter interface {
	Counts() (total, running int)
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	bots   BotCounter
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the bot registry.
func NewHealthHandler(bots BotCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{bots: bots, logger: logger}
}

// HealthCheck reports liveness plus how many bots are registered and running.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	total, running := h.bots.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"bots_total":   total,
		"bots_running": running,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
