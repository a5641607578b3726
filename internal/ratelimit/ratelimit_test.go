package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/auth"
	"github.com/gkchatty/gkchatty-local/internal/config"
)

func TestAllowBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(func() time.Time { return now })
	rule := Rule{Rate: 1, Burst: 3}

	for i := 0; i < 3; i++ {
		if ok, _ := limiter.Allow("u1|api", rule); !ok {
			t.Fatalf("request %d inside burst was denied", i+1)
		}
	}

	ok, retryAfter := limiter.Allow("u1|api", rule)
	if ok {
		t.Fatal("fourth request should be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Second {
		t.Errorf("retryAfter = %v, want (0, 1s]", retryAfter)
	}

	// After two seconds two tokens are back.
	now = now.Add(2 * time.Second)
	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("u1|api", rule); !ok {
			t.Fatalf("refilled request %d was denied", i+1)
		}
	}
	if ok, _ := limiter.Allow("u1|api", rule); ok {
		t.Error("third request after a 2s refill should be denied")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(func() time.Time { return now })
	rule := Rule{Rate: 1, Burst: 1}

	if ok, _ := limiter.Allow("u1|chat", rule); !ok {
		t.Fatal("first caller denied")
	}
	if ok, _ := limiter.Allow("u1|chat", rule); ok {
		t.Fatal("first caller should be exhausted")
	}
	if ok, _ := limiter.Allow("u2|chat", rule); !ok {
		t.Error("second caller shares the first caller's bucket")
	}
}

func TestAllowZeroRuleIsUnlimited(t *testing.T) {
	limiter := NewLimiter(nil)
	for i := 0; i < 100; i++ {
		if ok, _ := limiter.Allow("k", Rule{}); !ok {
			t.Fatal("zero rule should never deny")
		}
	}
}

var testSecret = []byte("test-secret")

func limitedRouter(t *testing.T, cfg config.LimitsConfig, now *time.Time) http.Handler {
	t.Helper()
	limiter := NewLimiter(func() time.Time { return *now })
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(limiter, cfg, testSecret)(mux)
}

func TestMiddlewareReturns429WithHeaders(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := limitedRouter(t, config.LimitsConfig{
		Enabled: true,
		API:     config.RuleConfig{PerMinute: 60, Burst: 2},
	}, &now)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	var body struct {
		Error        string `json:"error"`
		RetryAfterMs int    `json:"retry_after_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error != "rate_limited" || body.RetryAfterMs <= 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestMiddlewareGroupsByPath(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := limitedRouter(t, config.LimitsConfig{
		Enabled: true,
		Auth:    config.RuleConfig{PerMinute: 60, Burst: 1},
		API:     config.RuleConfig{PerMinute: 60, Burst: 10},
	}, &now)

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("/api/auth/login"); code != http.StatusOK {
		t.Fatalf("first login = %d", code)
	}
	if code := send("/api/auth/login"); code != http.StatusTooManyRequests {
		t.Errorf("second login = %d, want 429", code)
	}
	// The exhausted auth bucket does not affect the api group.
	if code := send("/api/documents"); code != http.StatusOK {
		t.Errorf("api request = %d, want 200", code)
	}
}

func TestMiddlewareExemptsAdmins(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := limitedRouter(t, config.LimitsConfig{
		Enabled: true,
		API:     config.RuleConfig{PerMinute: 60, Burst: 1},
	}, &now)

	token, err := auth.GenerateToken(&auth.User{ID: "admin-1", Username: "root", Role: auth.RoleAdmin}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("admin request %d = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := limitedRouter(t, config.LimitsConfig{
		Enabled: false,
		API:     config.RuleConfig{PerMinute: 60, Burst: 1},
	}, &now)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d with limits disabled", i+1, rec.Code)
		}
	}
}
