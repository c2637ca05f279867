package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
)

func TestBotSecret_AllowsMatchingSecret(t *testing.T) {
	cfg := config.TelegramConfig{BotAPISecret: "hunter2"}
	handler := BotSecret(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/bot/agents/link", nil)
	req.Header.Set(botSecretHeader, "hunter2")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBotSecret_RejectsWrongSecret(t *testing.T) {
	cfg := config.TelegramConfig{BotAPISecret: "hunter2"}
	handler := BotSecret(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/bot/agents/link", nil)
	req.Header.Set(botSecretHeader, "wrong")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBotSecret_RejectsWhenUnconfigured(t *testing.T) {
	handler := BotSecret(config.TelegramConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/bot/agents/link", nil)
	req.Header.Set(botSecretHeader, "")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
