package history

import (
	"context"
	"sync"
)

// MemoryRepo keeps lists in process memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	lists map[string][]Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{lists: make(map[string][]Entry)}
}

func (r *MemoryRepo) Load(_ context.Context, key string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.lists[key]), nil
}

func (r *MemoryRepo) Save(_ context.Context, key string, entries []Entry) error {
	r.mu.Lock()
	r.lists[key] = clone(entries)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.lists, key)
	r.mu.Unlock()
	return nil
}

func clone(in []Entry) []Entry {
	if len(in) == 0 {
		return nil
	}
	out := make([]Entry, len(in))
	copy(out, in)
	return out
}
