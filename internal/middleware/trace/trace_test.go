package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"treasury/internal/log"
)

func TestHandlerTagsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "192.0.2.1" })

	var seenID string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/stats", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Fatalf("request id %q", seenID)
	}
	if rr.Header().Get(HeaderRequestID) != seenID {
		t.Fatalf("response header %q want %q", rr.Header().Get(HeaderRequestID), seenID)
	}

	out := buf.String()
	for _, want := range []string{
		"HTTP request started",
		"HTTP request completed",
		"status_code=418",
		"client_ip=192.0.2.1",
		"inside handler",
		"request_id=" + seenID,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if m.Total() != 1 || m.InFlight() != 0 {
		t.Fatalf("total=%d inflight=%d", m.Total(), m.InFlight())
	}
}

func TestIncomingRequestID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "proxy-abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(HeaderRequestID); got != "proxy-abc-123" {
		t.Fatalf("got %q", got)
	}

	req.Header.Set(HeaderRequestID, "bad id\nwith newline")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "req_") {
		t.Fatalf("unsafe id should be replaced, got %q", got)
	}
}
