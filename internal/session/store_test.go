package session

import (
	"bytes"
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("app")

	data, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if data != nil {
		t.Fatalf("Load on empty store: got %q, want nil", data)
	}

	payload := []byte(`{"id":"s1"}`)
	if err := s.Save(ctx, payload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Load: got %q, want %q", got, payload)
	}

	// The store hands out copies; mutating one must not leak into the other.
	got[0] = 'X'
	again, _ := s.Load(ctx)
	if !bytes.Equal(again, payload) {
		t.Error("Load returned a shared slice")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if data, _ := s.Load(ctx); data != nil {
		t.Errorf("Load after Clear: got %q, want nil", data)
	}
}

func TestMemoryStoreIsolatedByPrefix(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryStore("app-a")
	b := NewMemoryStore("app-b")

	if err := a.Save(ctx, []byte("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if data, _ := b.Load(ctx); data != nil {
		t.Errorf("stores share state across prefixes: got %q", data)
	}
}
