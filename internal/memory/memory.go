// Package memory manages an agent's long-term memory file and the
// short-term state documents of running instances. Long-term memory is
// shared between concurrent instances of the same agent and goes through
// the advisory lock; each short-term file is exclusively written by its
// owning instance and needs only atomic persistence.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/filelock"
	"github.com/LoganGrasby/freza/internal/fsutil"
)

// ShortTerm is the mutable scratch state an instance publishes about
// itself. Extra contains free-form fields merged by UpdateShortTerm.
type ShortTerm map[string]any

// Manager operates on one agent's memory plus the workspace-wide
// short-term directory.
type Manager struct {
	cfg       *config.Config
	agentName string
}

// NewManager creates a memory manager for the named agent.
func NewManager(cfg *config.Config, agentName string) *Manager {
	return &Manager{cfg: cfg, agentName: agentName}
}

func (m *Manager) memoryFile() string { return m.cfg.AgentMemoryFile(m.agentName) }

// Read returns the agent's long-term memory under a shared lock; empty
// string when the file does not exist yet.
func (m *Manager) Read(ctx context.Context) (string, error) {
	lock := filelock.ForFile(m.memoryFile())
	if err := lock.RLock(ctx); err != nil {
		return "", err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(m.memoryFile())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read memory %s: %w", m.memoryFile(), err)
	}
	return string(data), nil
}

// Write replaces the agent's long-term memory under an exclusive lock.
func (m *Manager) Write(ctx context.Context, content string) error {
	lock := filelock.ForFile(m.memoryFile())
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return fsutil.AtomicWriteFile(m.memoryFile(), []byte(content), 0o600)
}

// Append adds content to the agent's long-term memory under an exclusive
// lock, so concurrent appenders never clobber each other.
func (m *Manager) Append(ctx context.Context, content string) error {
	lock := filelock.ForFile(m.memoryFile())
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	existing, err := os.ReadFile(m.memoryFile())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read memory %s: %w", m.memoryFile(), err)
	}
	combined := string(existing) + "\n" + content + "\n"
	return fsutil.AtomicWriteFile(m.memoryFile(), []byte(combined), 0o600)
}

func (m *Manager) shortTermPath(instanceID string) string {
	return filepath.Join(m.cfg.ShortTermDir(), fsutil.SafeName(instanceID)+".json")
}

// ReadShortTerm returns the state document of an instance, or nil when
// absent or unparseable.
func (m *Manager) ReadShortTerm(instanceID string) ShortTerm {
	data, err := os.ReadFile(m.shortTermPath(instanceID))
	if err != nil {
		return nil
	}
	var st ShortTerm
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	return st
}

// WriteShortTerm replaces an instance's state document atomically. Only
// the owning instance writes it, so no lock is needed.
func (m *Manager) WriteShortTerm(instanceID string, st ShortTerm) error {
	if err := os.MkdirAll(m.cfg.ShortTermDir(), 0o750); err != nil {
		return fmt.Errorf("create short-term directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal short-term state: %w", err)
	}
	return fsutil.AtomicWriteFile(m.shortTermPath(instanceID), data, 0o600)
}

// UpdateShortTerm merges fields into an instance's state document and
// stamps updated_at.
func (m *Manager) UpdateShortTerm(instanceID string, fields ShortTerm) error {
	st := m.ReadShortTerm(instanceID)
	if st == nil {
		st = ShortTerm{}
	}
	for k, v := range fields {
		st[k] = v
	}
	st["updated_at"] = float64(time.Now().UnixNano()) / float64(time.Second)
	return m.WriteShortTerm(instanceID, st)
}

// RemoveShortTerm deletes an instance's state document.
func (m *Manager) RemoveShortTerm(instanceID string) {
	_ = os.Remove(m.shortTermPath(instanceID))
}

// AllShortTerm returns every readable state document keyed by instance id.
func (m *Manager) AllShortTerm() map[string]ShortTerm {
	out := make(map[string]ShortTerm)
	entries, err := os.ReadDir(m.cfg.ShortTermDir())
	if err != nil {
		return out
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		id := name[:len(name)-len(".json")]
		if st := m.ReadShortTerm(id); st != nil {
			out[id] = st
		}
	}
	return out
}

// Cleanup removes short-term files whose instance is no longer active.
func (m *Manager) Cleanup(activeIDs map[string]bool) {
	for id := range m.AllShortTerm() {
		if !activeIDs[id] {
			m.RemoveShortTerm(id)
		}
	}
}
