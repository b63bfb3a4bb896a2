// Package identity carries the current user through request contexts. The
// console sits behind an authenticating proxy that forwards the user's
// display name and role as headers; nothing here enforces permissions.
package identity

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderUser = "X-Forwarded-User"
	HeaderRole = "X-Forwarded-Role"

	maxHeaderLen = 120
)

// User is who performed a write, as recorded on budgets.
type User struct {
	Name string
	Role string
}

type contextKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user stored in ctx, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}

// Provider resolves the current user for a context.
type Provider struct {
	Default User
}

// NewProvider returns a provider falling back to the given name and role.
func NewProvider(name, role string) *Provider {
	return &Provider{Default: User{Name: name, Role: role}}
}

// Current returns the context user or the configured default.
func (p *Provider) Current(ctx context.Context) User {
	if u, ok := FromContext(ctx); ok && u.Name != "" {
		if u.Role == "" {
			u.Role = p.Default.Role
		}
		return u
	}
	return p.Default
}

// Middleware stores the proxy-supplied user in the request context.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := clean(r.Header.Get(HeaderUser))
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}
		u := User{Name: name, Role: clean(r.Header.Get(HeaderRole))}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func clean(v string) string {
	v = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
	v = strings.TrimSpace(v)
	if len(v) > maxHeaderLen {
		v = v[:maxHeaderLen]
	}
	return v
}
