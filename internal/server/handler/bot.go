package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradebot/internal/domain"
	"github.com/alanyoungcy/tradebot/internal/orchestrator"
)

// BotService is the narrow orchestrator surface the HTTP layer needs.
type BotService interface {
	CreateBot(ctx context.Context, rec domain.BotRecord) (domain.BotRecord, error)
	GetBot(id, userID string) (domain.BotRecord, error)
	ListBots(userID string) []domain.BotRecord
	UpdateBot(ctx context.Context, id, userID string, upd domain.BotRecord) (domain.BotRecord, error)
	DeleteBot(ctx context.Context, id, userID string) error
	StartBot(ctx context.Context, id, userID string) error
	StopBot(ctx context.Context, id, userID string) error
	Position(ctx context.Context, id, userID string) (orchestrator.PositionSnapshot, error)
	ResetRisk(id, userID string) error
}

// BotHandler serves bot CRUD and lifecycle endpoints.
type BotHandler struct {
	svc    BotService
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler.
func NewBotHandler(svc BotService, logger *slog.Logger) *BotHandler {
	return &BotHandler{svc: svc, logger: logger}
}

// CreateBot registers a new bot.
// POST /api/bots
func (h *BotHandler) CreateBot(w http.ResponseWriter, r *http.Request) {
	var rec domain.BotRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if rec.UserID == "" {
		rec.UserID = userID(r)
	}

	created, err := h.svc.CreateBot(r.Context(), rec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListBots returns the caller's bots.
// GET /api/bots
func (h *BotHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	bots := h.svc.ListBots(userID(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"bots":  bots,
		"count": len(bots),
	})
}

// GetBot returns one bot.
// GET /api/bots/{id}
func (h *BotHandler) GetBot(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetBot(pathParam(r, "id"), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateBot replaces a stopped bot's configuration.
// PUT /api/bots/{id}
func (h *BotHandler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	var upd domain.BotRecord
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.svc.UpdateBot(r.Context(), pathParam(r, "id"), userID(r), upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteBot removes a stopped bot.
// DELETE /api/bots/{id}
func (h *BotHandler) DeleteBot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBot(r.Context(), pathParam(r, "id"), userID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// StartBot brings a bot up.
// POST /api/bots/{id}/start
func (h *BotHandler) StartBot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.svc.StartBot(r.Context(), id, userID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running", "bot_id": id})
}

// StopBot shuts a bot down.
// POST /api/bots/{id}/stop
func (h *BotHandler) StopBot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.svc.StopBot(r.Context(), id, userID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "bot_id": id})
}

// Position returns the bot's open position with unrealized PnL.
// GET /api/bots/{id}/position
func (h *BotHandler) Position(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Position(r.Context(), pathParam(r, "id"), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ResetRisk clears a running bot's drawdown halt.
// POST /api/bots/{id}/reset-risk
func (h *BotHandler) ResetRisk(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.svc.ResetRisk(id, userID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "risk_reset", "bot_id": id})
}
