package sqlitec

import (
	"sync"
	"sync/atomic"
)

// handleTable is an arena of native objects addressed by Handle. Handles
// come from a sequence shared by all the tables of an engine and are never
// reused, so a released or foreign handle can not alias a live object.
type handleTable[T any] struct {
	mu    sync.RWMutex
	seq   *atomic.Uint64
	items map[Handle]T
}

func newHandleTable[T any](seq *atomic.Uint64) *handleTable[T] {
	return &handleTable[T]{
		seq:   seq,
		items: make(map[Handle]T),
	}
}

// add stores item and returns its new handle.
func (t *handleTable[T]) add(item T) Handle {
	h := Handle(t.seq.Add(1))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[h] = item
	return h
}

// get returns the item of a live handle.
func (t *handleTable[T]) get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.items[h]
	return item, ok
}

// remove releases a handle and returns the item it referred to.
func (t *handleTable[T]) remove(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return item, ok
}

// len returns the number of live handles.
func (t *handleTable[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
