// Package audit records authentication-lifecycle events (logins, refreshes,
// logouts, rejected requests) on a best-effort trail. Emission never affects
// the request that triggered it.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Auth actions recorded on the trail.
const (
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionLogout        = "logout"
	ActionTokenRefresh  = "token_refresh"
	ActionTokenRevoked  = "token_revoked"
	ActionCSRFRejected  = "csrf_rejected"
	ActionSyncBroadcast = "sync_broadcast"
)

// SentinelUserID is recorded when the event has no authenticated user
// (e.g. login_failure for an unknown email).
const SentinelUserID = "_anonymous"

// Event is one audit trail entry.
type Event struct {
	ID        string    `json:"id"`
	AppID     string    `json:"app_id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Emitter ships audit events somewhere durable. Callers use it best-effort:
// log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, event *Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}

// IPExtractor returns the client IP for the current request context.
type IPExtractor func(context.Context) string

// Logger is the audit entry point handed to the auth code paths. A nil
// emitter disables the trail without changing call sites.
type Logger struct {
	emitter     Emitter
	appID       string
	ipExtractor IPExtractor
}

// NewLogger returns a Logger stamping events with appID. emitter and
// ipExtractor may be nil.
func NewLogger(emitter Emitter, appID string, ipExtractor IPExtractor) *Logger {
	return &Logger{emitter: emitter, appID: appID, ipExtractor: ipExtractor}
}

// LogEvent records one audit entry. Best-effort and asynchronous: the client
// IP is captured from ctx before it can be cancelled, then the emit runs off
// the calling goroutine via EmitAsync. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, metadata string) {
	if l == nil || l.emitter == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if extracted := l.ipExtractor(ctx); extracted != "" {
			ip = extracted
		}
	}
	if userID == "" {
		userID = SentinelUserID
	}
	event := &Event{
		ID:        uuid.New().String(),
		AppID:     l.appID,
		UserID:    userID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	EmitAsync(l.emitter, event)
}

// emitTimeout is the max time allowed for a single async emit. Drain windows
// at shutdown must be at least this long.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown waits after the server stops
// accepting requests, so in-flight async audit emits can complete.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit on a goroutine with a short timeout so request
// handlers are never blocked on the trail. The goroutine deliberately does
// not inherit the request context; request cancellation must not abort an
// in-flight emit.
func EmitAsync(emitter Emitter, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(ctx, event); err != nil {
			log.Printf("audit: async emit failed: %v", err)
		}
	}()
}
