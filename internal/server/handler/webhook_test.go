package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/tradebot/internal/orchestrator"
)

type stubWebhookService struct {
	res orchestrator.WebhookResult
}

func (s *stubWebhookService) HandleWebhook(ctx context.Context, token string, sig orchestrator.WebhookSignal) orchestrator.WebhookResult {
	return s.res
}

func TestWebhookStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		res  orchestrator.WebhookResult
		want int
	}{
		{"ok", orchestrator.WebhookResult{OK: true}, http.StatusOK},
		{"invalid token", orchestrator.WebhookResult{Reason: orchestrator.ReasonInvalidToken}, http.StatusNotFound},
		{"invalid action", orchestrator.WebhookResult{Reason: orchestrator.ReasonInvalidAction}, http.StatusBadRequest},
		{"invalid price", orchestrator.WebhookResult{Reason: orchestrator.ReasonInvalidPrice}, http.StatusBadRequest},
		{"not running", orchestrator.WebhookResult{Reason: orchestrator.ReasonNotRunning}, http.StatusConflict},
		{"halted", orchestrator.WebhookResult{Reason: orchestrator.ReasonHalted}, http.StatusConflict},
		{"unknown", orchestrator.WebhookResult{Reason: "boom"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, webhookStatus(tt.res))
		})
	}
}

func TestWebhookSignalEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(&stubWebhookService{
		res: orchestrator.WebhookResult{OK: true, Action: "buy", Message: "opened long"},
	}, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/tok-1",
		strings.NewReader(`{"action":"buy","price":100}`))
	req.SetPathValue("token", "tok-1")
	rr := httptest.NewRecorder()

	h.Signal(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "opened long")
}

func TestWebhookSignalBadBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(&stubWebhookService{}, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/tok-1", strings.NewReader("{"))
	req.SetPathValue("token", "tok-1")
	rr := httptest.NewRecorder()

	h.Signal(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
