package session

import "sync"

var (
	singletonMu sync.Mutex
	singleton   *Manager
)

// GetSessionManager returns the app-scoped Manager, constructing it from opts
// on first call. Later calls return the same instance and ignore opts.
func GetSessionManager(opts Options) *Manager {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = NewManager(opts)
	}
	return singleton
}

// DestroySessionManager tears down the app-scoped Manager and clears the
// singleton so the next GetSessionManager call constructs fresh. For test
// isolation and app teardown, not a normal runtime path.
func DestroySessionManager() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		singleton.Destroy()
		singleton = nil
	}
}
