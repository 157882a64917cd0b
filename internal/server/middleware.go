package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/sasarjan/authsync/internal/security"
)

// AuthMiddleware validates the Bearer access token on every request and puts
// the verified claims in context. Requests without a valid token get a
// generic 401; the body never reveals whether the token was absent, expired,
// or malformed.
func AuthMiddleware(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := security.ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := tokens.VerifyToken(token)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

// ClientIPMiddleware resolves the client IP (X-Forwarded-For first hop, then
// the connection's remote address) into the request context for audit.
func ClientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), clientIP(r))))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// fingerprintFromRequest assembles the device fingerprint from request
// headers. Browsers send User-Agent and Accept-Language; the app shells
// supply the rest through custom headers. Absent fields hash as empty
// strings, which is stable for a given client.
func fingerprintFromRequest(r *http.Request) security.DeviceFingerprint {
	return security.DeviceFingerprint{
		UserAgent:        r.UserAgent(),
		ScreenResolution: r.Header.Get("X-Screen-Resolution"),
		Timezone:         r.Header.Get("X-Timezone"),
		Language:         r.Header.Get("Accept-Language"),
		Platform:         r.Header.Get("Sec-Ch-Ua-Platform"),
	}
}
