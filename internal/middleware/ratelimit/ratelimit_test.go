package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, requests int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{Requests: requests, Period: time.Minute})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request in the window should be refused")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own window")
	}
	if rl.Hits() != 1 {
		t.Fatalf("hits=%d want 1", rl.Hits())
	}

	*now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window should reset after the period")
	}
}

func TestRetryAfter(t *testing.T) {
	rl, now := newTestLimiter(t, 1)
	rl.Allow("a")
	*now = now.Add(20 * time.Second)
	if got := rl.RetryAfter("a"); got != 40 {
		t.Fatalf("RetryAfter=%d want 40", got)
	}
	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Fatalf("RetryAfter(unknown)=%d want 0", got)
	}
}

func TestSweepDropsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("a")
	*now = now.Add(11 * time.Minute)
	rl.Allow("b")
	rl.sweep()
	if rl.ActiveClients() != 1 {
		t.Fatalf("active=%d want 1", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	var limited int
	h := rl.Middleware(
		func(*http.Request) string { return "10.0.0.1" },
		func(*http.Request, string) { limited++ },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("GET %d status=%d", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/budgets", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("first POST status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/budgets/x", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status=%d want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if limited != 1 {
		t.Fatalf("onLimit calls=%d want 1", limited)
	}
}
