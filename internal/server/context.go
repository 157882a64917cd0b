package server

import (
	"context"

	"github.com/sasarjan/authsync/internal/security"
)

type contextKey struct{ name string }

var (
	claimsKey   = contextKey{"claims"}
	clientIPKey = contextKey{"client_ip"}
)

// WithClaims returns a context carrying the verified access-token claims.
// Handlers behind the auth middleware read them via GetClaims.
func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the verified claims from context and true if set.
func GetClaims(ctx context.Context) (*security.Claims, bool) {
	v, ok := ctx.Value(claimsKey).(*security.Claims)
	return v, ok
}

// WithClientIP returns a context carrying the request's client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "" if unset. Satisfies
// audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
