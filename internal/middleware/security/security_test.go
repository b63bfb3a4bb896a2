package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing %s", name)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS expected over TLS")
	}
}

func TestRequireAPIKey(t *testing.T) {
	h := RequireAPIKey("s3cret")(okHandler())

	cases := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"read is open", http.MethodGet, "/api/budgets", nil, http.StatusOK},
		{"console write is open", http.MethodPost, "/budgets", nil, http.StatusOK},
		{"api write without key", http.MethodPost, "/api/budgets", nil, http.StatusUnauthorized},
		{"api write wrong key", http.MethodPost, "/api/budgets", map[string]string{HeaderAPIKey: "nope"}, http.StatusUnauthorized},
		{"api write with header", http.MethodPost, "/api/budgets", map[string]string{HeaderAPIKey: "s3cret"}, http.StatusOK},
		{"api write with bearer", http.MethodDelete, "/api/budgets/x", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want %d", rr.Code, tc.want)
			}
		})
	}

	open := RequireAPIKey("")(okHandler())
	rr := httptest.NewRecorder()
	open.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/budgets", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("empty key should disable the guard, got %d", rr.Code)
	}
}

func TestInspect(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		target string
		agent  string
		method string
		want   string
	}{
		{"/", "Mozilla/5.0", http.MethodGet, ""},
		{"/ui/budgets?q=catering", "Mozilla/5.0", http.MethodGet, ""},
		{"/.env", "Mozilla/5.0", http.MethodGet, "probe_pattern"},
		{"/ui/budgets?q=1%20union%20select", "Mozilla/5.0", http.MethodGet, "probe_pattern"},
		{"/", "sqlmap/1.7", http.MethodGet, "scanner_agent"},
		{"/", "Mozilla/5.0", "TRACE", "unusual_method"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		req.Header.Set("User-Agent", tc.agent)
		if got := d.Inspect(req); got != tc.want {
			t.Errorf("%s %s (%s): got %q want %q", tc.method, tc.target, tc.agent, got, tc.want)
		}
	}
	if d.Suspicious() != 4 {
		t.Fatalf("suspicious=%d want 4", d.Suspicious())
	}
}

func TestClientIP(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("untrusted peer: got %s", got)
	}

	req.RemoteAddr = "10.0.0.2:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	if got := d.ClientIP(req); got != "198.51.100.1" {
		t.Fatalf("trusted peer: got %s", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := d.ClientIP(req); got != "198.51.100.7" {
		t.Fatalf("X-Real-IP: got %s", got)
	}
}
