package memory

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoganGrasby/freza/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.EnsureDirs())
	require.NoError(t, os.MkdirAll(cfg.AgentDir("default"), 0o750))
	return NewManager(cfg, "default")
}

func TestReadMissingMemoryIsEmpty(t *testing.T) {
	m := newManager(t)
	got, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Write(context.Background(), "# Memory\n"))
	got, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Memory\n", got)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Write(context.Background(), "start"))

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Append(context.Background(), "entry"))
		}()
	}
	wg.Wait()

	got, err := m.Read(context.Background())
	require.NoError(t, err)
	count := 0
	for i := 0; i+5 <= len(got); i++ {
		if got[i:i+5] == "entry" {
			count++
		}
	}
	assert.Equal(t, n, count)
}

func TestShortTermLifecycle(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.WriteShortTerm("abc123", ShortTerm{
		"instance_id":  "abc123",
		"current_task": "initializing",
	}))
	st := m.ReadShortTerm("abc123")
	require.NotNil(t, st)
	assert.Equal(t, "initializing", st["current_task"])

	require.NoError(t, m.UpdateShortTerm("abc123", ShortTerm{"current_task": "thinking"}))
	st = m.ReadShortTerm("abc123")
	assert.Equal(t, "thinking", st["current_task"])
	assert.Contains(t, st, "updated_at")

	all := m.AllShortTerm()
	assert.Contains(t, all, "abc123")

	m.RemoveShortTerm("abc123")
	assert.Nil(t, m.ReadShortTerm("abc123"))
}

func TestCleanupRemovesInactive(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.WriteShortTerm("live", ShortTerm{"x": 1}))
	require.NoError(t, m.WriteShortTerm("dead", ShortTerm{"x": 2}))

	m.Cleanup(map[string]bool{"live": true})

	all := m.AllShortTerm()
	assert.Contains(t, all, "live")
	assert.NotContains(t, all, "dead")
}
