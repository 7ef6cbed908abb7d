package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestStoreGetPutRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `[1]` {
		t.Fatalf("unexpected value %q", got)
	}
	got[0] = 'X'
	again, _, _ := store.Get(ctx, "k")
	if string(again) != `[1]` {
		t.Fatalf("caller mutation leaked into store: %q", again)
	}
}

func TestStoreIsolatesStoredValues(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	value := []byte("one")
	if err := store.Put(ctx, "a", value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	if v, _, _ := store.Get(ctx, "a"); !bytes.Equal(v, []byte("one")) {
		t.Fatalf("put kept the caller's backing array: %q", v)
	}
	if err := store.Put(ctx, "a", []byte("two")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if v, _, _ := store.Get(ctx, "a"); string(v) != "two" {
		t.Fatalf("put should replace wholesale, got %q", v)
	}
}

func TestStoreClosed(t *testing.T) {
	store := NewStore()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Put(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
