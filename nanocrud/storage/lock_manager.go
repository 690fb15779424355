package storage

import (
	"fmt"
	"sync"
)

// OperationType tells the LockManager whether fn mutates the store
type OperationType int

const (
	// ReadOperation shares the lock with other readers
	ReadOperation OperationType = iota

	// WriteOperation holds the lock exclusively
	WriteOperation
)

func (t OperationType) String() string {
	switch t {
	case ReadOperation:
		return "read"
	case WriteOperation:
		return "write"
	default:
		return fmt.Sprintf("OperationType(%d)", int(t))
	}
}

// LockManager serializes record store access inside one process. The file
// lock covers other processes.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager returns an unlocked manager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Read runs fn under the shared lock
func (lm *LockManager) Read(fn func() error) error {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return fn()
}

// Write runs fn under the exclusive lock
func (lm *LockManager) Write(fn func() error) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return fn()
}

// Execute runs fn under the lock opType calls for. The lock is released
// even if fn panics.
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	switch opType {
	case ReadOperation:
		return lm.Read(fn)
	case WriteOperation:
		return lm.Write(fn)
	default:
		return fmt.Errorf("unknown lock operation %s", opType)
	}
}
