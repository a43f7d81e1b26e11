package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradebot/internal/orchestrator"
)

// WebhookService routes external signals by webhook token.
type WebhookService interface {
	HandleWebhook(ctx context.Context, token string, sig orchestrator.WebhookSignal) orchestrator.WebhookResult
}

// WebhookHandler serves the external signal endpoint.
type WebhookHandler struct {
	svc    WebhookService
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(svc WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, logger: logger}
}

// Signal routes an external trading signal to the bot owning the token.
// POST /api/webhook/{token}
func (h *WebhookHandler) Signal(w http.ResponseWriter, r *http.Request) {
	var sig orchestrator.WebhookSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.svc.HandleWebhook(r.Context(), pathParam(r, "token"), sig)
	writeJSON(w, webhookStatus(res), res)
}

// webhookStatus maps a webhook outcome to an HTTP status. Acknowledged no-ops
// are 200; rejections map by reason.
func webhookStatus(res orchestrator.WebhookResult) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Reason {
	case orchestrator.ReasonInvalidToken:
		return http.StatusNotFound
	case orchestrator.ReasonInvalidAction, orchestrator.ReasonInvalidPrice:
		return http.StatusBadRequest
	case orchestrator.ReasonNotRunning, orchestrator.ReasonNotReady, orchestrator.ReasonHalted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
