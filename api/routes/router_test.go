package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		Telegram: config.TelegramConfig{
			BotToken:       "123456:test-token",
			BotAPISecret:   "bot-secret",
			InitDataMaxAge: 24 * time.Hour,
		},
		BotRateLimit: config.BotRateLimitConfig{Window: time.Minute, Limit: 10},
	}
}

func TestRouterHealthz(t *testing.T) {
	handler := NewRouter(Deps{Config: testConfig()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec.Header().Get("X-FleetDesk-Env") != "test" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-FleetDesk-Env"))
	}
}

func TestRouterMetricsMountedWhenGathererPresent(t *testing.T) {
	handler := NewRouter(Deps{Config: testConfig(), Metrics: prometheus.NewRegistry()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestRouterMiniAppSurfaceRequiresInitData(t *testing.T) {
	handler := NewRouter(Deps{Config: testConfig()})

	for _, target := range []string{"/api/profile", "/api/drivers", "/api/draft"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", target, rec.Code)
		}
	}
}

func TestRouterBotSurfaceRequiresSecret(t *testing.T) {
	handler := NewRouter(Deps{Config: testConfig()})

	req := httptest.NewRequest(http.MethodGet, "/bot/agents/42", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
