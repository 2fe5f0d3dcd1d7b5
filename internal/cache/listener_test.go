package cache

import (
	"context"
	"testing"
	"time"
)

func TestListenInvalidatesListAndNamedProducts(t *testing.T) {
	store := NewStore()
	store.Set(KeyProductList, "list")
	store.Set(KeyProduct("product-1"), "one")
	store.Set(KeyProduct("product-2"), "two")

	events := make(chan ChangeEvent, 1)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		Listen(ctx, events, store)
		close(done)
	}()

	events <- ChangeEvent{ProductIDs: []string{"product-1"}}
	close(events)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after channel close")
	}

	if _, ok := store.GetFresh(KeyProductList); ok {
		t.Fatalf("expected product list invalidated")
	}
	if _, ok := store.GetFresh(KeyProduct("product-1")); ok {
		t.Fatalf("expected changed product invalidated")
	}
	if _, ok := store.GetFresh(KeyProduct("product-2")); !ok {
		t.Fatalf("expected untouched product to stay fresh")
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	store := NewStore()
	events := make(chan ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Listen(ctx, events, store)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after context cancel")
	}
}
