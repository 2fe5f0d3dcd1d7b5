package cache

import (
	"errors"
	"testing"
)

func TestCommitKeepsPatchButForcesRefetchOnSuccess(t *testing.T) {
	store := NewStore()
	store.Set(KeyProductList, 10)

	tx := Begin(store, KeyProductList)
	tx.Apply(KeyProductList, func(current interface{}) interface{} {
		return current.(int) + 1
	})

	if err := tx.Commit(func() error { return nil }); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	value, ok := store.Get(KeyProductList)
	if !ok || value != 11 {
		t.Fatalf("expected patched value to remain visible, got %v", value)
	}
	if _, ok := store.GetFresh(KeyProductList); ok {
		t.Fatalf("expected settled key to be stale so the next read refetches")
	}
}

func TestCommitRestoresSnapshotOnFailure(t *testing.T) {
	store := NewStore()
	store.Set(KeyProductList, 10)
	store.Set(KeyUserVotes("user-1"), map[string]bool{})

	tx := Begin(store, KeyProductList, KeyUserVotes("user-1"))
	tx.Apply(KeyProductList, func(current interface{}) interface{} {
		return current.(int) + 1
	})
	tx.Apply(KeyUserVotes("user-1"), func(current interface{}) interface{} {
		return map[string]bool{"product-1": true}
	})

	failure := errors.New("server rejected the write")
	if err := tx.Commit(func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected commit to surface the operation error, got %v", err)
	}

	value, ok := store.Get(KeyProductList)
	if !ok || value != 10 {
		t.Fatalf("expected pre-transaction value restored, got %v", value)
	}
	votes, ok := store.Get(KeyUserVotes("user-1"))
	if !ok {
		t.Fatalf("expected vote set restored")
	}
	if len(votes.(map[string]bool)) != 0 {
		t.Fatalf("expected empty vote set restored, got %v", votes)
	}
}

func TestCommitRemovesKeysAbsentBeforeTransaction(t *testing.T) {
	store := NewStore()

	tx := Begin(store, KeyProduct("product-1"))
	tx.Apply(KeyProduct("product-1"), func(current interface{}) interface{} {
		if current != nil {
			t.Fatalf("expected nil current for absent key")
		}
		return "optimistic"
	})

	failure := errors.New("boom")
	if err := tx.Commit(func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected commit to surface the operation error, got %v", err)
	}
	if _, ok := store.Get(KeyProduct("product-1")); ok {
		t.Fatalf("expected key absent again after rollback")
	}
}

func TestCommitTwiceFails(t *testing.T) {
	store := NewStore()
	tx := Begin(store, "key")

	if err := tx.Commit(func() error { return nil }); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	if err := tx.Commit(func() error { return nil }); !errors.Is(err, ErrTxFinished) {
		t.Fatalf("expected second commit to fail, got %v", err)
	}
}
