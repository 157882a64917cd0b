package syncbus

import (
	"context"
	"sync"
)

// Bus is the raw transport the sync service runs over. It moves opaque bytes
// on named channels; all authentication and encryption happen above it.
type Bus interface {
	// Publish sends data to every current subscriber of channel.
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe registers fn for messages on channel and returns an
	// unsubscribe func. fn is invoked sequentially per subscription.
	Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error)
	// Close releases transport resources. Subscriptions stop receiving.
	Close() error
}

// MemoryBus is an in-process Bus, used when the cooperating apps live in one
// process and in tests. Delivery is synchronous.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]func(data []byte)
	nextID int
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]func(data []byte))}
}

// Publish delivers data to every subscriber of channel, in subscription
// order, on the caller's goroutine.
func (b *MemoryBus) Publish(ctx context.Context, channel string, data []byte) error {
	b.mu.RLock()
	handlers := make([]func(data []byte), 0, len(b.subs[channel]))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.subs[channel][id]; ok {
			handlers = append(handlers, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		copied := make([]byte, len(data))
		copy(copied, data)
		fn(copied)
	}
	return nil
}

// Subscribe registers fn on channel.
func (b *MemoryBus) Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]func(data []byte))
	}
	id := b.nextID
	b.nextID++
	b.subs[channel][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
	}, nil
}

// Close drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]func(data []byte))
	return nil
}
