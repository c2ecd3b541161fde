package agent

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoganGrasby/freza/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Initialize())
	return NewManager(cfg)
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"default", "agent-1", "A_b2"} {
		_, err := ValidateName(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "-lead", "_lead", "has space", "a/b", "../x"} {
		_, err := ValidateName(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegisterCreatesDirectoryAndMemory(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Register(context.Background(), "researcher", "Research agent", ""))

	a, found, err := m.Get(context.Background(), "researcher")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Research agent", a.Description)

	cfgAgent, ok := m.GetConfig("researcher")
	require.True(t, ok)
	assert.Equal(t, "researcher", cfgAgent.Name)

	mem, err := os.ReadFile(m.cfg.AgentMemoryFile("researcher"))
	require.NoError(t, err)
	assert.Contains(t, string(mem), `I am "researcher"`)
	assert.Contains(t, string(mem), "Research agent")
}

func TestRegisterUpsertKeepsMemory(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Register(context.Background(), "bot", "v1", ""))
	require.NoError(t, os.WriteFile(m.cfg.AgentMemoryFile("bot"), []byte("precious"), 0o600))

	require.NoError(t, m.Register(context.Background(), "bot", "v2", "be terse"))

	a, found, err := m.Get(context.Background(), "bot")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", a.Description)
	assert.Equal(t, "be terse", a.SystemPrompt)

	agents, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 1)

	mem, err := os.ReadFile(m.cfg.AgentMemoryFile("bot"))
	require.NoError(t, err)
	assert.Equal(t, "precious", string(mem))
}

func TestRegisterRejectsInvalidName(t *testing.T) {
	m := newManager(t)
	assert.Error(t, m.Register(context.Background(), "../escape", "bad", ""))
}

func TestUnregister(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Register(context.Background(), "bot", "d", ""))
	require.NoError(t, m.Unregister(context.Background(), "bot"))

	_, found, err := m.Get(context.Background(), "bot")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEnsureDefault(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.EnsureDefault(context.Background()))
	_, ok := m.GetConfig(DefaultAgent)
	assert.True(t, ok)

	// Idempotent.
	require.NoError(t, m.EnsureDefault(context.Background()))
	agents, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}
