// Package csrf implements double-submit cookie CSRF protection: a per-session
// random token lives in a cookie the client mirrors into a request header on
// every state-changing request. Safe methods and excluded paths pass through
// untouched; everything else is rejected with a fixed 403 body on any missing
// or mismatched pair.
package csrf

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/sasarjan/authsync/internal/crypto"
)

const (
	// DefaultCookieName is the namespaced CSRF cookie.
	DefaultCookieName = "authsync-csrf-token"
	// DefaultHeaderName is the header the client mirrors the cookie into.
	DefaultHeaderName = "X-CSRF-Token"

	tokenBytes = 32
)

// forbiddenBody is the fixed 403 response. It deliberately reveals nothing
// about which check failed.
const forbiddenBody = `{"error":"forbidden","message":"CSRF validation failed"}`

// Options configures the middleware. Zero values use the defaults above.
type Options struct {
	CookieName string
	HeaderName string
	// ExcludePaths always pass through, regardless of method or token state.
	ExcludePaths []string
	// Secure marks the issued cookie Secure; set in production deployments.
	Secure bool
	// OnReject, if set, observes each rejected request before the 403 is
	// written (e.g. to record it on an audit trail).
	OnReject func(r *http.Request)
}

func (o Options) cookieName() string {
	if o.CookieName == "" {
		return DefaultCookieName
	}
	return o.CookieName
}

func (o Options) headerName() string {
	if o.HeaderName == "" {
		return DefaultHeaderName
	}
	return o.HeaderName
}

func (o Options) excluded(path string) bool {
	for _, p := range o.ExcludePaths {
		if p == path {
			return true
		}
	}
	return false
}

// Protection returns middleware enforcing the double-submit check on
// state-changing requests. GET, HEAD, and OPTIONS always pass; CSRF only
// protects state mutation.
func Protection(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) || opts.excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			cookie, err := r.Cookie(opts.cookieName())
			if err != nil || cookie.Value == "" {
				reject(w, r, opts)
				return
			}
			header := r.Header.Get(opts.headerName())
			if header == "" || !tokensEqual(cookie.Value, header) {
				reject(w, r, opts)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithProtection wraps a single handler with the same guarantee as
// Protection, for call sites outside a middleware chain.
func WithProtection(handler http.HandlerFunc, opts Options) http.HandlerFunc {
	protected := Protection(opts)(handler)
	return protected.ServeHTTP
}

// Token returns the request's CSRF token, lazily generating and persisting
// one via a Set-Cookie if none exists yet. Idempotent per session: repeated
// calls with the same cookie return the same token.
func Token(w http.ResponseWriter, r *http.Request, opts Options) (string, error) {
	if cookie, err := r.Cookie(opts.cookieName()); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, err := crypto.RandomToken(tokenBytes)
	if err != nil {
		return "", err
	}
	// Not HttpOnly: the client script must be able to read the value to
	// mirror it into the request header.
	http.SetCookie(w, &http.Cookie{
		Name:     opts.cookieName(),
		Value:    token,
		Path:     "/",
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// tokensEqual compares hashes of both values so the comparison runs in time
// independent of where a mismatch occurs or how long the inputs are.
func tokensEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

func reject(w http.ResponseWriter, r *http.Request, opts Options) {
	if opts.OnReject != nil {
		opts.OnReject(r)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(forbiddenBody))
}
