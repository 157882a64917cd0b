package syncbus

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

// RedisBus is a Bus over Redis pub/sub, connecting apps that run as separate
// processes. Messages published while no subscriber is connected are lost,
// which is acceptable: receivers resynchronize from the session store anyway.
type RedisBus struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
	wg   sync.WaitGroup
}

// NewRedisBus returns a Bus over the given Redis client. The caller retains
// ownership of the client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish sends data to channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, data []byte) error {
	return b.client.Publish(ctx, channel, data).Err()
}

// Subscribe consumes channel on a dedicated goroutine until the returned
// unsubscribe func or Close is called.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, fn func(data []byte)) (func(), error) {
	ps := b.client.Subscribe(ctx, channel)
	// Force the subscription onto the wire before returning, so a publish
	// issued right after Subscribe is not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	b.mu.Lock()
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = ps.Close() })
	}, nil
}

// Close tears down every subscription and waits for their goroutines.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, ps := range subs {
		_ = ps.Close()
	}
	b.wg.Wait()
	return nil
}
