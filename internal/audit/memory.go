package audit

import (
	"context"
	"sync"
)

// MemoryEmitter keeps events in memory. For tests and local development.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

// NewMemoryEmitter returns an empty MemoryEmitter.
func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

// Emit stores the event, or returns the injected error.
func (e *MemoryEmitter) Emit(ctx context.Context, event *Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	copied := *event
	e.events = append(e.events, &copied)
	return nil
}

// Close is a no-op.
func (e *MemoryEmitter) Close() error { return nil }

// Events returns a snapshot of everything emitted so far.
func (e *MemoryEmitter) Events() []*Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Event, len(e.events))
	copy(out, e.events)
	return out
}

// FailWith makes subsequent Emit calls return err.
func (e *MemoryEmitter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}
