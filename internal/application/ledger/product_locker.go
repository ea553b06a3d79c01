package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ProductLocker serializes stock mutations per product within the process.
// Entries are reference counted and removed when no goroutine holds or
// waits on them.
type ProductLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

// NewProductLocker creates an empty locker
func NewProductLocker() *ProductLocker {
	return &ProductLocker{locks: make(map[uuid.UUID]*productLock)}
}

// Lock acquires the locks for all given products in ascending ID order and
// returns a function that releases them. Duplicate IDs are ignored.
func (l *ProductLocker) Lock(productIDs ...uuid.UUID) func() {
	ids := sortedUnique(productIDs)

	held := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		l.acquire(id)
		held = append(held, id)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				l.release(held[i])
			}
		})
	}
}

func (l *ProductLocker) acquire(id uuid.UUID) {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &productLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
}

func (l *ProductLocker) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pl, ok := l.locks[id]
	if !ok {
		return
	}
	pl.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, id)
	}
}

// size returns the number of tracked products
func (l *ProductLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
