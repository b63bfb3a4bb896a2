// Package trace tags each request with an id and logs its start and end.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"treasury/internal/log"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

type contextKey struct{}

// Middleware handles request tracing and logging
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *log.Logger

	total    atomic.Int64
	inFlight atomic.Int64
}

// NewMiddleware logs through logger. clientIP may be nil.
func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	return &Middleware{
		clientIP: clientIP,
		logger:   logger,
	}
}

// Handler wraps next. The request context carries the request id and a
// logger bound to it, see RequestID and log.FromContext.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		events := log.NewStructuredLogger(log.FromContext(r.Context()))
		events.LogHTTPStart(r.Context(), r, ip)
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		events.LogHTTPEnd(r.Context(), r, rw.status, time.Since(start).Milliseconds(), ip)
	})

	bound := log.Middleware(m.logger)(
		log.RequestIDMiddleware(func(r *http.Request) string { return RequestID(r.Context()) })(logged))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.total.Add(1)
		m.inFlight.Add(1)
		defer m.inFlight.Add(-1)

		id := incomingID(r.Header.Get(HeaderRequestID))
		if id == "" {
			id = NewRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		bound.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	})
}

// Total returns how many requests have been traced.
func (m *Middleware) Total() int64 { return m.total.Load() }

// InFlight returns how many requests are being served.
func (m *Middleware) InFlight() int64 { return m.inFlight.Load() }

// NewRequestID returns a fresh "req_" prefixed id.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// RequestID extracts the request id from ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// incomingID accepts a proxy-assigned id when it is short and printable.
func incomingID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > 64 {
		return ""
	}
	for _, r := range v {
		if r <= 0x20 || r >= 0x7f {
			return ""
		}
	}
	return v
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
