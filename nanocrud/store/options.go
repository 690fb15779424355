package store

import "time"

// JSONStoreOption modifies JSONStore configuration
type JSONStoreOption func(*JSONStore)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) JSONStoreOption {
	return func(s *JSONStore) {
		s.fs = fs
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) JSONStoreOption {
	return func(s *JSONStore) {
		s.lockFactory = factory
	}
}

// WithTimeFunc sets a custom time function for deterministic timestamps
func WithTimeFunc(fn func() time.Time) JSONStoreOption {
	return func(s *JSONStore) {
		s.timeFunc = fn
	}
}

// WithLockTimeout bounds how long a single operation waits for the file lock
func WithLockTimeout(d time.Duration) JSONStoreOption {
	return func(s *JSONStore) {
		s.lockTimeout = d
	}
}
