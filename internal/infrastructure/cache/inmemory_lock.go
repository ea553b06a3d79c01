package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryLock implements Lock inside one process.
// WARNING: it does not coordinate across instances; use RedisLock when
// more than one replica runs the same job.
type InMemoryLock struct {
	mu        sync.Mutex
	held      bool
	expiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewInMemoryLock creates an in-process lock whose hold expires after ttl
func NewInMemoryLock(ttl time.Duration) *InMemoryLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &InMemoryLock{ttl: ttl, now: time.Now}
}

// Acquire takes the lock if it is free or its previous hold has expired
func (l *InMemoryLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.held && now.Before(l.expiresAt) {
		return false, nil
	}
	l.held = true
	l.expiresAt = now.Add(l.ttl)
	return true, nil
}

// Release frees the lock
func (l *InMemoryLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// Ensure InMemoryLock implements Lock
var _ Lock = (*InMemoryLock)(nil)
