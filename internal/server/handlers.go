package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sasarjan/authsync/internal/audit"
	"github.com/sasarjan/authsync/internal/csrf"
	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := csrf.Token(w, r, s.csrfOpts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.audit(r, "", audit.ActionLoginFailure, `{"email":`+quote(req.Email)+`}`)
		unauthorized(w)
		return
	}

	fp := fingerprintFromRequest(r)
	pair, err := s.tokens.GenerateTokenPair(user.ID, user.Email, user.Role, fp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	if s.refresher != nil {
		s.refresher.SetFingerprint(fp)
	}

	sess := buildSession(user, pair)
	if err := s.sessions.SetSession(r.Context(), sess); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	s.audit(r, user.ID, audit.ActionLoginSuccess, "")
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// An empty or malformed body falls back to the active session's token.
	_ = json.NewDecoder(r.Body).Decode(&req)
	refreshToken := req.RefreshToken
	if refreshToken == "" {
		if current := s.sessions.GetSession(r.Context()); current != nil {
			refreshToken = current.RefreshToken
		}
	}
	if refreshToken == "" {
		unauthorized(w)
		return
	}

	fp := fingerprintFromRequest(r)
	if s.refresher != nil {
		s.refresher.SetFingerprint(fp)
	}
	pair, err := s.tokens.RotateTokens(refreshToken, fp)
	if err != nil {
		if errors.Is(err, security.ErrInvalidToken) ||
			errors.Is(err, security.ErrTokenExpired) ||
			errors.Is(err, security.ErrTokenRevoked) ||
			errors.Is(err, security.ErrDeviceMismatch) {
			unauthorized(w)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	claims, err := s.tokens.VerifyToken(pair.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	user := session.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if known, ok := s.users.Lookup(claims.Email); ok {
		user = known
	}
	sess := buildSession(user, pair)
	if err := s.sessions.SetSession(r.Context(), sess); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	s.audit(r, user.ID, audit.ActionTokenRefresh, "")
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if current := s.sessions.GetSession(r.Context()); current != nil {
		userID = current.User.ID
		// Revoke the refresh token so the pair cannot be rotated again.
		if claims, err := s.tokens.VerifyToken(current.RefreshToken); err == nil {
			s.tokens.RevokeToken(claims.ID)
			s.audit(r, userID, audit.ActionTokenRevoked, `{"jti":`+quote(claims.ID)+`}`)
		}
	}
	if err := s.sessions.ClearSession(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	s.audit(r, userID, audit.ActionLogout, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaims(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	s.sessions.Touch()
	user := session.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if known, ok := s.users.Lookup(claims.Email); ok {
		user = known
	}
	writeJSON(w, http.StatusOK, user)
}

// audit emits a best-effort trail entry; a nil logger is a no-op.
func (s *Server) audit(r *http.Request, userID, action, metadata string) {
	s.auditLog.LogEvent(r.Context(), userID, action, metadata)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
