// Package filelock serializes access to shared files across unrelated
// processes using OS advisory locks. The lock lives in a dedicated sibling
// file of the data it protects, so the data file can be atomically replaced
// without disturbing the held lock descriptor.
package filelock

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is a named advisory lock. It is not reentrant: acquiring the same
// Lock twice from one goroutine without releasing may deadlock depending on
// platform semantics.
type Lock struct {
	fl *flock.Flock
}

// LockPathFor returns the lock file path protecting the given data file.
func LockPathFor(dataPath string) string { return dataPath + ".lock" }

// New creates a lock bound to the given lock file path. The file is created
// on first acquisition.
func New(path string) *Lock {
	return &Lock{fl: flock.New(path)}
}

// ForFile creates a lock protecting the given data file, using the
// conventional sibling lock path.
func ForFile(dataPath string) *Lock {
	return New(LockPathFor(dataPath))
}

// Lock acquires the lock exclusively, blocking until it is granted or ctx
// is done. Exclusive acquisition excludes all other holders.
func (l *Lock) Lock(ctx context.Context) error {
	ok, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire exclusive lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("acquire exclusive lock %s: not granted", l.fl.Path())
	}
	return nil
}

// RLock acquires the lock shared, blocking until granted or ctx is done.
// Shared holders may coexist; they exclude exclusive holders.
func (l *Lock) RLock(ctx context.Context) error {
	ok, err := l.fl.TryRLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire shared lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("acquire shared lock %s: not granted", l.fl.Path())
	}
	return nil
}

// TryLock attempts exclusive acquisition without blocking. Returns false
// when another process holds the lock.
func (l *Lock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Unlock releases the lock. The OS releases it regardless if the process
// exits while holding it, since advisory locks die with their descriptors.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }
