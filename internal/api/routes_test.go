package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/sori/internal/client"
	"github.com/sorivoice/sori/internal/config"
	"github.com/sorivoice/sori/internal/metrics"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := config.Default()
	registry := prometheus.NewRegistry()
	cl, err := client.New(cfg, client.Deps{
		Logger:  zap.NewNop(),
		Metrics: metrics.New(registry),
	})
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	t.Cleanup(func() { cl.Close() })

	e := echo.New()
	InitRoutes(e, cl, registry, zap.NewNop())
	return e
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sori-client") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status client.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Bad status JSON: %v", err)
	}
	if status.Connected {
		t.Error("A never-connected client should report disconnected")
	}
	if status.AutoChat.State != "inactive" {
		t.Errorf("Expected inactive auto chat, got %s", status.AutoChat.State)
	}
}

func TestAutoChatStartWhileDisconnected(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/autochat/start",
		strings.NewReader(`{"theme":"casual","interval":30}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 while disconnected, got %d", rec.Code)
	}
}

func TestAutoChatSettingsClampViaAPI(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/autochat/settings",
		strings.NewReader(`{"theme":"news","interval":3}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp AutoChatSettingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad settings JSON: %v", err)
	}
	if resp.Theme != "news" || resp.Interval != 10 {
		t.Errorf("Expected clamped settings news/10, got %+v", resp)
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	e := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}
