package cache

import "errors"

// ErrTxFinished indicates a transaction was committed twice.
var ErrTxFinished = errors.New("cache: transaction already settled")

// Tx is one optimistic mutation: snapshot, apply patches, commit the server
// call, restore the snapshot on failure, and unconditionally invalidate the
// touched keys on settlement so optimistic state never becomes the system of
// record.
type Tx struct {
	store    *Store
	captured map[string]snapshotEntry
	keys     []string
	finished bool
}

// Begin snapshots the given keys and opens a transaction over them.
func Begin(store *Store, keys ...string) *Tx {
	return &Tx{
		store:    store,
		captured: store.snapshot(keys),
		keys:     keys,
	}
}

// Apply optimistically replaces the value under key using mutate, which
// receives the current cached value (nil when absent) and returns the
// patched value. The key must be one of the transaction's keys.
func (tx *Tx) Apply(key string, mutate func(current interface{}) interface{}) {
	current, _ := tx.store.Get(key)
	tx.store.Set(key, mutate(current))
}

// Commit runs the server operation. On error the snapshot is restored before
// the error is returned. In every case the touched keys are invalidated so
// the next read fetches authoritative state.
func (tx *Tx) Commit(operation func() error) error {
	if tx.finished {
		return ErrTxFinished
	}
	tx.finished = true

	err := operation()
	if err != nil {
		tx.store.restore(tx.captured)
	}
	tx.store.Invalidate(tx.keys...)
	return err
}
