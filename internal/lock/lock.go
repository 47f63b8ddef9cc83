package lock

import (
	"context"
	"time"
)

// Locker guards a named resource across processes.
type Locker interface {
	// Acquire returns false, without error, when another holder has the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
