package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Hour
	}
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.LoginBurst != 10 {
		t.Errorf("LoginBurst = %d, want 10", cfg.LoginBurst)
	}
}

func TestRateLimiterConfigPerMinute_ZeroDisablesLimit(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(0, -1)

	if cfg.GeneralRate != rate.Inf || cfg.LoginRate != rate.Inf {
		t.Errorf("rates = (%v, %v), want Inf", cfg.GeneralRate, cfg.LoginRate)
	}
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: rate.Limit(0.001), GeneralBurst: 2})
	handler := rl.GeneralMiddleware()(okHandler())

	send := func(username string) int {
		req := httptest.NewRequest(http.MethodGet, "/list-todos", nil)
		req = req.WithContext(ContextWithUsername(req.Context(), username))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("rvg"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := send("rvg"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", code)
	}
	if code := send("ric"); code != http.StatusOK {
		t.Errorf("other user: status = %d, want 200", code)
	}
	if n := rl.GeneralLimiterCount(); n != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", n)
	}
}

func TestLoginMiddleware_LimitsPerIP(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{LoginRate: rate.Limit(0.001), LoginBurst: 1})
	handler := rl.LoginMiddleware()(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := send("10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first attempt: status = %d, want 200", w.Code)
	}
	w := send("10.0.0.1:5678")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second attempt from same IP: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if w := send("10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_Cleanup_EvictsIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		LoginRate:       rate.Limit(1),
		LoginBurst:      1,
		CleanupInterval: time.Minute,
	})
	rl.general.get("rvg")
	rl.login.get("10.0.0.1")

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 || rl.LoginLimiterCount() != 1 {
		t.Fatal("recent entries should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.LoginLimiterCount() != 0 {
		t.Error("idle entries should be evicted")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Hour})
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4321"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Errorf("clientIP = %q, want %q", got, "192.0.2.1")
	}

	req.RemoteAddr = "no-port"
	if got := clientIP(req); got != "no-port" {
		t.Errorf("clientIP = %q, want %q", got, "no-port")
	}
}
