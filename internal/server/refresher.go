package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/session"
)

// TokenRefresher implements session.Refresher over the token provider. The
// fingerprint of the most recent login is replayed on rotation so the new
// pair stays bound to the same device.
type TokenRefresher struct {
	tokens    *security.TokenProvider
	directory *UserDirectory

	mu sync.Mutex
	fp security.DeviceFingerprint
}

// NewTokenRefresher returns a TokenRefresher over tokens and directory.
func NewTokenRefresher(tokens *security.TokenProvider, directory *UserDirectory) *TokenRefresher {
	return &TokenRefresher{tokens: tokens, directory: directory}
}

// SetFingerprint records the device fingerprint rotation should be bound to.
// Called at login.
func (r *TokenRefresher) SetFingerprint(fp security.DeviceFingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fp = fp
}

// Refresh rotates the refresh token into a new session. Rejections of the
// token itself (invalid, expired, revoked, wrong device) are terminal; only
// infrastructure errors are left retryable.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	r.mu.Lock()
	fp := r.fp
	r.mu.Unlock()

	pair, err := r.tokens.RotateTokens(refreshToken, fp)
	if err != nil {
		if errors.Is(err, security.ErrInvalidToken) ||
			errors.Is(err, security.ErrTokenExpired) ||
			errors.Is(err, security.ErrTokenRevoked) ||
			errors.Is(err, security.ErrDeviceMismatch) {
			return nil, fmt.Errorf("%w: %v", session.ErrTerminalRefresh, err)
		}
		return nil, err
	}
	claims, err := r.tokens.VerifyToken(pair.AccessToken)
	if err != nil {
		return nil, err
	}

	user := session.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if known, ok := r.directory.Lookup(claims.Email); ok {
		user = known
	}
	return buildSession(user, pair), nil
}

// buildSession wraps a token pair into a fresh session for the given user.
func buildSession(user session.User, pair *security.TokenPair) *session.Session {
	return &session.Session{
		ID:           uuid.New().String(),
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt.UnixMilli(),
		ExpiresIn:    pair.ExpiresIn,
	}
}
