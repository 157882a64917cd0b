package syncbus

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var mu sync.Mutex
	var a, b [][]byte
	unsubA, err := bus.Subscribe(ctx, "ch", func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		a = append(a, data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := bus.Subscribe(ctx, "ch", func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		b = append(b, data)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "ch", []byte("one")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mu.Lock()
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("delivery counts: a=%d b=%d, want 1 each", len(a), len(b))
	}
	mu.Unlock()

	// Subscribers on other channels stay silent.
	if err := bus.Publish(ctx, "other", []byte("two")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mu.Lock()
	if len(a) != 1 {
		t.Errorf("cross-channel delivery: a=%d", len(a))
	}
	mu.Unlock()

	unsubA()
	if err := bus.Publish(ctx, "ch", []byte("three")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(a) != 1 {
		t.Errorf("unsubscribed handler still invoked: a=%d", len(a))
	}
	if len(b) != 2 {
		t.Errorf("remaining handler missed a message: b=%d", len(b))
	}
}

func TestMemoryBusSubscriberGetsOwnCopy(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var got []byte
	if _, err := bus.Subscribe(ctx, "ch", func(data []byte) {
		data[0] = 'X' // must not affect other subscribers
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := bus.Subscribe(ctx, "ch", func(data []byte) {
		got = data
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "ch", []byte("abc")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("subscriber saw a mutated payload: %q", got)
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	calls := 0
	if _, err := bus.Subscribe(ctx, "ch", func([]byte) { calls++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Publish(ctx, "ch", []byte("x")); err != nil {
		t.Fatalf("Publish after Close: %v", err)
	}
	if calls != 0 {
		t.Errorf("subscriber invoked after Close: %d calls", calls)
	}
}
