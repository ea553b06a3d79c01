package cache

import (
	"context"
	"time"
)

// defaultLockTTL bounds how long a crashed holder can block other instances
const defaultLockTTL = time.Hour

// Lock coordinates exclusive runs of a job across goroutines or processes.
type Lock interface {
	// Acquire tries to take the lock without blocking. It returns false when
	// another holder owns it.
	Acquire(ctx context.Context) (bool, error)
	// Release frees the lock if this instance still owns it.
	Release(ctx context.Context) error
}
