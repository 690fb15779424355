package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout = 3 * time.Second
	lockMaxRetries     = 3
	lockRetryDelay     = 100 * time.Millisecond
)

// FileLock is an exclusive lock shared between processes
type FileLock interface {
	// TryLockContext polls every retryInterval until the lock is taken or
	// ctx is done
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	Unlock() error
}

// FileLockFactory hands out the lock guarding a data file
type FileLockFactory interface {
	New(path string) FileLock
}

// FlockFactory creates gofrs/flock locks
type FlockFactory struct{}

// New implements FileLockFactory
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}

var _ FileLock = (*flock.Flock)(nil)

// lockPath is the sidecar lock file for a data file
func lockPath(dataPath string) string {
	return dataPath + ".lock"
}

// acquire takes l, retrying a few times before giving up
func acquire(ctx context.Context, l FileLock) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := l.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}
