package auction

import (
	"sync"

	"github.com/google/uuid"
)

// ItemLocks provides per-item mutual exclusion. The same lock set must be
// shared by every writer of item state (bid arbiter and auction clock) so
// that all read-modify-write cycles for one item serialize.
type ItemLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewItemLocks creates an empty lock set.
func NewItemLocks() *ItemLocks {
	return &ItemLocks{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Get returns the mutex for an item, creating it on first use.
func (l *ItemLocks) Get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
