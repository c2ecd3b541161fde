// Package jsonstore provides a locked read-modify-write transaction over a
// single JSON document shared between processes. An exclusive advisory lock
// serializes transactions; persistence goes through an atomic rename so
// readers never observe a torn document.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/LoganGrasby/freza/internal/filelock"
	"github.com/LoganGrasby/freza/internal/fsutil"
)

// Store persists one JSON document of type T at a fixed path. A Store may
// be shared freely between goroutines; every operation acquires its own
// lock handle.
type Store[T any] struct {
	path string
}

// New creates a store for the document at path. The protecting lock file is
// a sibling (path + ".lock") so replacing the document never invalidates a
// held lock descriptor.
func New[T any](path string) *Store[T] {
	return &Store[T]{path: path}
}

// Path returns the document path.
func (s *Store[T]) Path() string { return s.path }

// load reads and parses the document without locking. A missing or
// unparseable file yields the zero value: the data is low-stakes and
// availability wins over alerting on corruption.
func (s *Store[T]) load() T {
	var doc T
	data, err := os.ReadFile(s.path)
	if err != nil {
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("discarding unparseable document", "path", s.path, "error", err)
		var zero T
		return zero
	}
	return doc
}

// Transact runs fn under the exclusive lock: current document in, new
// document out, persisted atomically before the lock is released. The new
// document is returned. An error from fn aborts the transaction without
// writing.
func (s *Store[T]) Transact(ctx context.Context, fn func(T) (T, error)) (T, error) {
	var zero T
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return zero, fmt.Errorf("create store directory: %w", err)
	}
	// A fresh handle per transaction means a fresh descriptor: goroutines
	// sharing this Store contend on the OS lock instead of silently
	// re-entering a lock the process already holds.
	lock := filelock.ForFile(s.path)
	if err := lock.Lock(ctx); err != nil {
		return zero, err
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := fn(s.load())
	if err != nil {
		return zero, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return zero, fmt.Errorf("marshal document %s: %w", s.path, err)
	}
	if err := fsutil.AtomicWriteFile(s.path, data, 0o600); err != nil {
		return zero, err
	}
	return doc, nil
}

// Read returns the current document under a shared lock. It may race a
// concurrent Transact and observe either the pre- or post-transaction
// state, never a torn one.
func (s *Store[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return zero, fmt.Errorf("create store directory: %w", err)
	}
	lock := filelock.ForFile(s.path)
	if err := lock.RLock(ctx); err != nil {
		return zero, err
	}
	defer func() { _ = lock.Unlock() }()
	return s.load(), nil
}
