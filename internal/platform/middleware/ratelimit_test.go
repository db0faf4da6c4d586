package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_SeparateKeys(t *testing.T) {
	e := echo.New()
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		KeyFunc:           func(c echo.Context) string { return c.Request().Header.Get("X-User") },
	}
	handler := RateLimit(cfg)(okHandler)

	for _, user := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Errorf("user %s: expected first request to pass, got %v", user, err)
		}
	}
}

func TestRateLimit_DefaultsOnInvalidConfig(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("expected request to pass with defaults, got %v", err)
	}
}

func TestLimiterStore_SweepsIdle(t *testing.T) {
	now := time.Now()
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	s.now = func() time.Time { return now }

	s.get("a")
	s.get("b")
	if s.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", s.size())
	}

	now = now.Add(2 * time.Minute)
	s.get("c")
	if s.size() != 1 {
		t.Errorf("expected idle limiters to be swept, got %d", s.size())
	}
}
