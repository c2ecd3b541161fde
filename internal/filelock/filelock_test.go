package filelock

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	l := ForFile(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, l.Lock(context.Background()))
	require.NoError(t, l.Unlock())
}

func TestLockPathFor(t *testing.T) {
	assert.Equal(t, "/tmp/x.json.lock", LockPathFor("/tmp/x.json"))
}

func TestTryLockContended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := ForFile(path)
	b := ForFile(path)

	require.NoError(t, a.Lock(context.Background()))
	ok, err := b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock())
	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
}

func TestLockBlocksUntilReleased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := ForFile(path)
	b := ForFile(path)

	require.NoError(t, a.Lock(context.Background()))

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Lock(context.Background()); err == nil {
			close(acquired)
			_ = b.Unlock()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while still held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, a.Unlock())
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock not acquired after release")
	}
	wg.Wait()
}

func TestLockContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := ForFile(path)
	b := ForFile(path)

	require.NoError(t, a.Lock(context.Background()))
	defer func() { _ = a.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := b.Lock(ctx)
	assert.Error(t, err)
}

func TestSharedReadersCoexist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := ForFile(path)
	b := ForFile(path)

	require.NoError(t, a.RLock(context.Background()))
	require.NoError(t, b.RLock(context.Background()))
	require.NoError(t, a.Unlock())
	require.NoError(t, b.Unlock())
}
