// Package session owns the canonical per-app authentication state: one
// Session slot persisted to a namespaced store, monitored for expiry and
// inactivity, proactively refreshed, and kept in step with the other apps
// through broadcast auth events.
package session

import (
	"time"

	"github.com/sasarjan/authsync/internal/security"
)

// User is a denormalized identity snapshot carried inside the session, not a
// live reference to the user record.
type User struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FullName  string        `json:"full_name"`
	Role      security.Role `json:"role"`
	AvatarURL string        `json:"avatar_url,omitempty"`
}

// Session is the authoritative client-side auth state. It is replaced
// wholesale on refresh, never partially patched.
type Session struct {
	ID           string `json:"id"`
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the absolute access-token expiry in epoch milliseconds.
	ExpiresAt int64 `json:"expires_at"`
	// ExpiresIn is the seconds-remaining hint captured at issuance.
	ExpiresIn int64 `json:"expires_in"`
}

// Valid reports whether the session is still live at now. An expired session
// must be treated as absent everywhere; stale identity is never surfaced.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.ID == "" || s.AccessToken == "" {
		return false
	}
	return now.UnixMilli() < s.ExpiresAt
}

// Lifetime returns the total access-token lifetime the session was issued
// with, reconstructed from the expiry hint.
func (s *Session) Lifetime() time.Duration {
	return time.Duration(s.ExpiresIn) * time.Second
}

// RefreshDue reports whether the threshold fraction of the session lifetime
// has elapsed at now (e.g. 0.8 means refresh once 80% of the lifetime is
// spent).
func (s *Session) RefreshDue(now time.Time, threshold float64) bool {
	if s == nil {
		return false
	}
	lifetime := s.Lifetime()
	if lifetime <= 0 {
		return true
	}
	issuedAt := time.UnixMilli(s.ExpiresAt).Add(-lifetime)
	elapsed := now.Sub(issuedAt)
	return elapsed >= time.Duration(float64(lifetime)*threshold)
}
