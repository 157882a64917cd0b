package session

import (
	"testing"
	"time"
)

func TestSessionValid(t *testing.T) {
	now := time.Now()
	s := &Session{ID: "s1", AccessToken: "at", ExpiresAt: now.Add(time.Minute).UnixMilli()}
	if !s.Valid(now) {
		t.Error("future expiry reported invalid")
	}
	s.ExpiresAt = now.Add(-time.Millisecond).UnixMilli()
	if s.Valid(now) {
		t.Error("past expiry reported valid")
	}
	if (&Session{ID: "s1", AccessToken: "at"}).Valid(now) {
		t.Error("zero ExpiresAt reported valid")
	}
	missingToken := &Session{ID: "s1", ExpiresAt: now.Add(time.Minute).UnixMilli()}
	if missingToken.Valid(now) {
		t.Error("session without an access token reported valid")
	}
}

func TestSessionRefreshDue(t *testing.T) {
	now := time.Now()
	lifetime := 10 * time.Minute
	s := &Session{
		ExpiresIn: int64(lifetime.Seconds()),
		ExpiresAt: now.Add(lifetime).UnixMilli(),
	}

	if s.RefreshDue(now, 0.8) {
		t.Error("freshly issued session reported due")
	}
	if !s.RefreshDue(now.Add(9*time.Minute), 0.8) {
		t.Error("session at 90% of lifetime not reported due")
	}
	// Exactly at the threshold counts as due.
	if !s.RefreshDue(now.Add(8*time.Minute), 0.8) {
		t.Error("session at the threshold not reported due")
	}
}
