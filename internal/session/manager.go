package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sasarjan/authsync/internal/syncbus"
)

// ErrTerminalRefresh marks a refresh failure that cannot be retried: the
// refresh token itself is invalid, expired, or revoked. The manager reacts by
// clearing the session and broadcasting a sign-out, forcing re-auth. Any
// other refresh error is transient and retried on the next monitoring tick.
var ErrTerminalRefresh = errors.New("session: refresh terminally failed")

// Refresher exchanges a refresh token for a wholly new session. Terminal
// failures must wrap ErrTerminalRefresh.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// Broadcaster publishes session-lifecycle events to the other apps.
// *syncbus.Service implements it.
type Broadcaster interface {
	BroadcastAuthEvent(ctx context.Context, evt syncbus.Event) error
}

const (
	defaultRefreshThreshold = 0.8
	defaultActivityTimeout  = 30 * time.Minute
	defaultMonitorInterval  = 15 * time.Second
	refreshTimeout          = 10 * time.Second
)

// Options configures a Manager. Store is required; Broadcaster and Refresher
// may be nil (no cross-app propagation, no proactive refresh).
type Options struct {
	Store       Store
	Broadcaster Broadcaster
	Refresher   Refresher
	// RefreshThreshold is the fraction of the access-token lifetime after
	// which a refresh is triggered. Zero means 0.8.
	RefreshThreshold float64
	// ActivityTimeout invalidates the session after this much user idleness,
	// independent of token expiry. Zero means 30m.
	ActivityTimeout time.Duration
	// MonitorInterval is the monitoring tick period. Zero means 15s.
	MonitorInterval time.Duration
}

// Manager owns the single Session slot for this app instance. All state
// transitions go through it: explicit set/clear, expiry and idle detection,
// proactive refresh, and mirroring of events received from sibling apps.
type Manager struct {
	store            Store
	broadcaster      Broadcaster
	refresher        Refresher
	refreshThreshold float64
	activityTimeout  time.Duration
	monitorInterval  time.Duration

	mu           sync.Mutex
	session      *Session
	lastActivity time.Time
	// gen increments on every set/clear; an in-flight refresh carries the gen
	// it started under and its result is dropped if the slot moved on, so a
	// slow refresh completing after a logout cannot resurrect the session.
	gen         uint64
	refreshing  bool
	stopMonitor chan struct{}

	nowF func() time.Time
}

// NewManager returns a Manager over the given options.
func NewManager(opts Options) *Manager {
	m := &Manager{
		store:            opts.Store,
		broadcaster:      opts.Broadcaster,
		refresher:        opts.Refresher,
		refreshThreshold: opts.RefreshThreshold,
		activityTimeout:  opts.ActivityTimeout,
		monitorInterval:  opts.MonitorInterval,
		nowF:             time.Now,
	}
	if m.refreshThreshold <= 0 || m.refreshThreshold >= 1 {
		m.refreshThreshold = defaultRefreshThreshold
	}
	if m.activityTimeout <= 0 {
		m.activityTimeout = defaultActivityTimeout
	}
	if m.monitorInterval <= 0 {
		m.monitorInterval = defaultMonitorInterval
	}
	return m
}

// SetSession replaces the session slot, persists it, starts monitoring, and
// broadcasts a sign-in to the sibling apps. A session already past the
// refresh threshold is scheduled for immediate refresh.
func (m *Manager) SetSession(ctx context.Context, s *Session) error {
	return m.set(ctx, s, syncbus.EventSignIn)
}

func (m *Manager) set(ctx context.Context, s *Session, broadcastAs syncbus.EventType) error {
	if s == nil {
		return errors.New("session: nil session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	now := m.nowF()
	// Persist before touching memory; a Save failure must leave the slot
	// exactly as it was, not divergent from storage.
	if err := m.store.Save(ctx, data); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen++
	gen := m.gen
	copied := *s
	m.session = &copied
	m.lastActivity = now
	if copied.Valid(now) {
		m.startMonitorLocked()
	}
	refreshNow := copied.Valid(now) && copied.RefreshDue(now, m.refreshThreshold) && m.refresher != nil && !m.refreshing
	if refreshNow {
		m.refreshing = true
	}
	m.mu.Unlock()

	if broadcastAs != "" {
		m.broadcast(ctx, broadcastAs, data)
	}
	if refreshNow {
		go m.refresh(gen, copied.RefreshToken)
	}
	return nil
}

// GetSession returns the current session, or nil when absent, expired, or
// idle-timed-out. A miss in memory falls back to the persistent store; a
// value there that fails to parse or validate is treated as absent, never as
// an error.
func (m *Manager) GetSession(ctx context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()

	if m.session != nil {
		if now.Sub(m.lastActivity) > m.activityTimeout || !m.session.Valid(now) {
			m.wipeLocked(ctx)
			return nil
		}
		copied := *m.session
		return &copied
	}

	data, err := m.store.Load(ctx)
	if err != nil || len(data) == 0 {
		return nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt storage: treat as absent rather than propagating.
		_ = m.store.Clear(ctx)
		return nil
	}
	if !s.Valid(now) {
		_ = m.store.Clear(ctx)
		return nil
	}
	m.gen++
	m.session = &s
	m.lastActivity = now
	m.startMonitorLocked()
	copied := s
	return &copied
}

// ClearSession wipes memory and storage, stops monitoring, and broadcasts a
// sign-out. Clearing an already-cleared session is a no-op and broadcasts
// nothing.
func (m *Manager) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	had := m.session != nil
	m.gen++
	m.session = nil
	err := m.store.Clear(ctx)
	m.stopMonitorLocked()
	m.mu.Unlock()

	if had {
		m.broadcast(ctx, syncbus.EventSignOut, json.RawMessage("null"))
	}
	return err
}

// Touch records user activity, pushing out the idle timeout.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.nowF()
}

// ApplyRemoteEvent mirrors a verified event from a sibling app onto local
// state without re-broadcasting, so events cannot echo between apps forever.
// Malformed payloads are ignored.
func (m *Manager) ApplyRemoteEvent(evt syncbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	switch evt.Type {
	case syncbus.EventSignIn:
		var s Session
		if err := json.Unmarshal(evt.Payload, &s); err != nil || !s.Valid(m.nowF()) {
			return
		}
		_ = m.set(ctx, &s, "")

	case syncbus.EventSignOut:
		m.mu.Lock()
		m.gen++
		m.session = nil
		_ = m.store.Clear(ctx)
		m.stopMonitorLocked()
		m.mu.Unlock()

	case syncbus.EventTokenRefreshed:
		var p syncbus.RefreshedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.AccessToken == "" {
			return
		}
		m.mu.Lock()
		if m.session == nil {
			m.mu.Unlock()
			return
		}
		updated := *m.session
		updated.AccessToken = p.AccessToken
		updated.ExpiresAt = p.ExpiresAt
		m.gen++
		m.session = &updated
		if data, err := json.Marshal(&updated); err == nil {
			_ = m.store.Save(ctx, data)
		}
		m.mu.Unlock()
	}
}

// Destroy stops monitoring and drops the in-memory session without touching
// storage or broadcasting. For app teardown and test isolation.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.session = nil
	m.stopMonitorLocked()
}

func (m *Manager) startMonitorLocked() {
	if m.stopMonitor != nil {
		return
	}
	stop := make(chan struct{})
	m.stopMonitor = stop
	go m.monitor(stop)
}

func (m *Manager) stopMonitorLocked() {
	if m.stopMonitor != nil {
		close(m.stopMonitor)
		m.stopMonitor = nil
	}
}

// monitor periodically checks the session for idle timeout, expiry, and the
// refresh threshold while a session is active.
func (m *Manager) monitor(stop <-chan struct{}) {
	ticker := time.NewTicker(m.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) tick() {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return
	}
	now := m.nowF()
	if now.Sub(m.lastActivity) > m.activityTimeout || !s.Valid(now) {
		// Idle or expired sessions die locally; sibling apps track their own
		// activity and expiry, so no broadcast.
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		m.wipeLocked(ctx)
		cancel()
		m.mu.Unlock()
		return
	}
	refreshNow := s.RefreshDue(now, m.refreshThreshold) && m.refresher != nil && !m.refreshing
	var gen uint64
	var refreshToken string
	if refreshNow {
		m.refreshing = true
		gen = m.gen
		refreshToken = s.RefreshToken
	}
	m.mu.Unlock()

	if refreshNow {
		m.refresh(gen, refreshToken)
	}
}

// refresh exchanges the refresh token and applies the result, unless the
// session slot changed while the request was in flight.
func (m *Manager) refresh(gen uint64, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	fresh, err := m.refresher.Refresh(ctx, refreshToken)

	m.mu.Lock()
	m.refreshing = false
	if m.gen != gen || m.session == nil {
		// Logout or replacement won while we were refreshing; drop the result.
		m.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, ErrTerminalRefresh) {
			// Wipe under the lock that checked gen, so a login landing
			// between the check and the wipe cannot be swept away.
			log.Printf("session: refresh token rejected, clearing session: %v", err)
			m.wipeLocked(ctx)
			m.mu.Unlock()
			m.broadcast(ctx, syncbus.EventSignOut, json.RawMessage("null"))
			return
		}
		m.mu.Unlock()
		// Transient failures leave the session unchanged; the next
		// monitoring tick retries.
		return
	}
	m.mu.Unlock()

	if err := m.set(ctx, fresh, ""); err != nil {
		log.Printf("session: applying refreshed session failed: %v", err)
		return
	}
	payload, err := json.Marshal(syncbus.RefreshedPayload{
		AccessToken: fresh.AccessToken,
		ExpiresAt:   fresh.ExpiresAt,
	})
	if err == nil {
		m.broadcast(ctx, syncbus.EventTokenRefreshed, payload)
	}
}

func (m *Manager) broadcast(ctx context.Context, t syncbus.EventType, payload json.RawMessage) {
	if m.broadcaster == nil {
		return
	}
	if err := m.broadcaster.BroadcastAuthEvent(ctx, syncbus.Event{Type: t, Payload: payload}); err != nil {
		log.Printf("session: broadcast %s failed: %v", t, err)
	}
}

// wipeLocked drops memory and storage without broadcasting. Callers hold mu.
func (m *Manager) wipeLocked(ctx context.Context) {
	m.gen++
	m.session = nil
	_ = m.store.Clear(ctx)
	m.stopMonitorLocked()
}
