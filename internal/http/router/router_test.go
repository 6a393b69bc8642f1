package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "whatsapp_crm_backend/internal/http"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type stubHealth struct{ err error }

func (s stubHealth) Ping(context.Context) error { return s.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "v1") })
	ctx.Webhooks.POST("/echo", func(c *gin.Context) { c.String(http.StatusOK, "hook") })
}

func newTestEngine(health apphttp.HealthChecker, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  cfg,
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{echoModule{}},
	})
}

func defaultConfig() *config.Config {
	return &config.Config{
		CORSOrigins:      []string{"http://localhost:3000"},
		WebhookRateLimit: 50,
		WebhookRateBurst: 100,
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestEngine(stubHealth{}, defaultConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	rec = httptest.NewRecorder()
	newTestEngine(stubHealth{err: errors.New("down")}, defaultConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestModulesMountedOnGroups(t *testing.T) {
	engine := newTestEngine(stubHealth{}, defaultConfig())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "v1" {
		t.Fatalf("unexpected v1 response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/echo", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hook" {
		t.Fatalf("unexpected webhook response %d %q", rec.Code, rec.Body.String())
	}
}

func TestWebhooksAreRateLimited(t *testing.T) {
	cfg := defaultConfig()
	cfg.WebhookRateLimit = 0.001
	cfg.WebhookRateBurst = 2
	engine := newTestEngine(stubHealth{}, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/echo", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger endpoints must not share the webhook limiter, got %d", rec.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	newTestEngine(stubHealth{}, defaultConfig()).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
