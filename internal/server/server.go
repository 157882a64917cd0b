// Package server exposes the HTTP auth surface: login, refresh, logout,
// current-user lookup, CSRF token issuance, and health.
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sasarjan/authsync/internal/audit"
	"github.com/sasarjan/authsync/internal/csrf"
	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/session"
)

// Options wires the server's collaborators. Tokens, Users, and Sessions are
// required; the rest may be nil/zero.
type Options struct {
	Tokens    *security.TokenProvider
	Users     *UserDirectory
	Sessions  *session.Manager
	Refresher *TokenRefresher
	Audit     *audit.Logger
	CSRF      csrf.Options
	// Middleware is applied to the whole router, outermost first
	// (e.g. telemetry instrumentation).
	Middleware []mux.MiddlewareFunc
}

// Server is the HTTP auth service.
type Server struct {
	tokens    *security.TokenProvider
	users     *UserDirectory
	sessions  *session.Manager
	refresher *TokenRefresher
	auditLog  *audit.Logger
	csrfOpts  csrf.Options
	router    *mux.Router
}

// New builds the router: public login/refresh/csrf/health routes, bearer-
// guarded /auth/me, CSRF double-submit on every mutating route.
func New(opts Options) *Server {
	s := &Server{
		tokens:    opts.Tokens,
		users:     opts.Users,
		sessions:  opts.Sessions,
		refresher: opts.Refresher,
		auditLog:  opts.Audit,
		csrfOpts:  opts.CSRF,
	}

	r := mux.NewRouter()
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}
	r.Use(ClientIPMiddleware)
	csrfOpts := s.csrfOpts
	csrfOpts.OnReject = func(r *http.Request) {
		s.audit(r, "", audit.ActionCSRFRejected, `{"path":`+quote(r.URL.Path)+`}`)
	}
	r.Use(csrf.Protection(csrfOpts))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/auth/csrf", s.handleCSRFToken).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	authed := AuthMiddleware(s.tokens)
	r.Handle("/auth/me", authed(http.HandlerFunc(s.handleMe))).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}
