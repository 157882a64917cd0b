package server

import (
	"context"
	"errors"
	"testing"

	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/session"
)

func TestUserDirectory(t *testing.T) {
	d := NewUserDirectory(4)
	u, err := d.Add("Jo@Example.org", "correct horse battery", "Jo", security.RoleAdmin)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if u.Email != "jo@example.org" {
		t.Errorf("email not normalized: %q", u.Email)
	}

	got, err := d.Authenticate("jo@example.org", "correct horse battery")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID || got.Role != security.RoleAdmin {
		t.Errorf("authenticated user: %+v", got)
	}

	if _, err := d.Authenticate("jo@example.org", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := d.Authenticate("nobody@example.org", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v", err)
	}

	if _, ok := d.Lookup(" JO@example.org "); !ok {
		t.Error("Lookup missed a known email")
	}
	if _, err := d.Add("x@example.org", "pw", "X", security.Role("superuser")); err == nil {
		t.Error("invalid role accepted")
	}
}

func TestTokenRefresherClassifiesFailures(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	d := NewUserDirectory(4)
	user, err := d.Add("jo@example.org", "pw-pw-pw-pw", "Jo", security.RoleCustomer)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	fp := security.DeviceFingerprint{UserAgent: "test-agent"}
	r := NewTokenRefresher(tokens, d)
	r.SetFingerprint(fp)
	ctx := context.Background()

	pair, err := tokens.GenerateTokenPair(user.ID, user.Email, user.Role, fp)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	fresh, err := r.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fresh.User.ID != user.ID || fresh.User.FullName != "Jo" {
		t.Errorf("refreshed session user: %+v", fresh.User)
	}
	if fresh.AccessToken == pair.AccessToken {
		t.Error("refresh did not rotate the access token")
	}

	// The rotated-away token is terminal, not retryable.
	if _, err := r.Refresh(ctx, pair.RefreshToken); !errors.Is(err, session.ErrTerminalRefresh) {
		t.Errorf("reused token: err = %v, want ErrTerminalRefresh", err)
	}
	if _, err := r.Refresh(ctx, "garbage"); !errors.Is(err, session.ErrTerminalRefresh) {
		t.Errorf("garbage token: err = %v, want ErrTerminalRefresh", err)
	}

	// A token bound to another device is terminal too.
	otherPair, err := tokens.GenerateTokenPair(user.ID, user.Email, user.Role,
		security.DeviceFingerprint{UserAgent: "other-agent"})
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if _, err := r.Refresh(ctx, otherPair.RefreshToken); !errors.Is(err, session.ErrTerminalRefresh) {
		t.Errorf("foreign device token: err = %v, want ErrTerminalRefresh", err)
	}
}
