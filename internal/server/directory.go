package server

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/session"
)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords
// alike, so callers cannot probe which emails exist.
var ErrInvalidCredentials = errors.New("server: invalid credentials")

// userRecord is one directory entry.
type userRecord struct {
	user session.User
	hash string
}

// UserDirectory is an in-memory credential store keyed by lowercased email.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]userRecord
	cost  int
}

// NewUserDirectory returns an empty directory hashing passwords at the given
// bcrypt cost.
func NewUserDirectory(cost int) *UserDirectory {
	return &UserDirectory{users: make(map[string]userRecord), cost: cost}
}

// Add registers a user. The email is normalized to lower case; registering
// the same email twice replaces the entry.
func (d *UserDirectory) Add(email, password, fullName string, role security.Role) (session.User, error) {
	if !role.Valid() {
		return session.User{}, errors.New("server: invalid role")
	}
	hash, err := security.HashPassword([]byte(password), d.cost)
	if err != nil {
		return session.User{}, err
	}
	u := session.User{
		ID:       uuid.New().String(),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		FullName: fullName,
		Role:     role,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Email] = userRecord{user: u, hash: hash}
	return u, nil
}

// Authenticate checks the email/password pair and returns the user on
// success.
func (d *UserDirectory) Authenticate(email, password string) (session.User, error) {
	d.mu.RLock()
	rec, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	d.mu.RUnlock()
	if !ok {
		return session.User{}, ErrInvalidCredentials
	}
	if err := security.ComparePassword(rec.hash, []byte(password)); err != nil {
		return session.User{}, ErrInvalidCredentials
	}
	return rec.user, nil
}

// Lookup returns the user for email without checking credentials, for
// refresh flows that already hold a verified token.
func (d *UserDirectory) Lookup(email string) (session.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[strings.ToLower(strings.TrimSpace(email))]
	return rec.user, ok
}
