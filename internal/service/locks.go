package service

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// VariantLocker serializes the read-modify-write on each variant's quantity.
// The engine runs on a single node, so an in-process mutex per variant id is
// sufficient; on postgres the in-transaction SELECT ... FOR UPDATE guards the
// same critical section at the row level as well.
//
// Multi-variant operations (a multi-line sale, a purchase-order receipt)
// acquire all their locks in ascending id order, which prevents deadlock
// between two operations touching overlapping variants.
type VariantLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewVariantLocker() *VariantLocker {
	return &VariantLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *VariantLocker) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock acquires the locks for every given variant id (deduplicated, sorted)
// and returns the function that releases them.
func (l *VariantLocker) Lock(ids ...uuid.UUID) func() {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool {
		return bytes.Compare(unique[i][:], unique[j][:]) < 0
	})

	acquired := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		m := l.get(id)
		m.Lock()
		acquired = append(acquired, m)
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}
