// Package agent manages named agents: their metadata document, per-agent
// directories, and seeded long-term memory.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/fsutil"
	"github.com/LoganGrasby/freza/internal/jsonstore"
)

// DefaultAgent always exists in an initialized workspace.
const DefaultAgent = "default"

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

const memoryTemplate = `# Agent Memory — %s

## Identity
I am "%s", an autonomous agent. I persist across invocations and maintain this memory.
%s

## Core Knowledge


## Active Projects


## Notes

`

// Agent is one entry in the agents metadata document.
type Agent struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	CreatedAt    float64 `json:"created_at"`
	UpdatedAt    float64 `json:"updated_at"`
}

// Manager performs CRUD over the agents document and owns the side effects
// of registration (directory, agent.json, seeded memory).
type Manager struct {
	cfg   *config.Config
	store *jsonstore.Store[[]Agent]
}

// NewManager creates a manager over the workspace's agents document.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, store: jsonstore.New[[]Agent](cfg.AgentsMeta())}
}

// ValidateName checks an agent name against the allowed pattern.
func ValidateName(name string) (string, error) {
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf(
			"invalid agent name %q: must be alphanumeric with hyphens/underscores only, starting with an alphanumeric character", name)
	}
	return name, nil
}

// List returns all registered agents.
func (m *Manager) List(ctx context.Context) ([]Agent, error) {
	return m.store.Read(ctx)
}

// Get returns the named agent, or false if it is not registered.
func (m *Manager) Get(ctx context.Context, name string) (Agent, bool, error) {
	agents, err := m.store.Read(ctx)
	if err != nil {
		return Agent{}, false, err
	}
	for _, a := range agents {
		if a.Name == name {
			return a, true, nil
		}
	}
	return Agent{}, false, nil
}

// GetConfig reads the agent's on-disk agent.json, or false if absent or
// unparseable.
func (m *Manager) GetConfig(name string) (Agent, bool) {
	data, err := os.ReadFile(m.cfg.AgentConfigFile(name))
	if err != nil {
		return Agent{}, false
	}
	var a Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return Agent{}, false
	}
	return a, true
}

// Register upserts an agent in the metadata document, creates its
// directory, writes agent.json, and seeds memory.md when missing.
func (m *Manager) Register(ctx context.Context, name, description, systemPrompt string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	var registered Agent
	_, err = m.store.Transact(ctx, func(agents []Agent) ([]Agent, error) {
		for i := range agents {
			if agents[i].Name == name {
				agents[i].Description = description
				agents[i].SystemPrompt = systemPrompt
				agents[i].UpdatedAt = now
				registered = agents[i]
				return agents, nil
			}
		}
		registered = Agent{
			Name:         name,
			Description:  description,
			SystemPrompt: systemPrompt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return append(agents, registered), nil
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.cfg.AgentDir(name), 0o750); err != nil {
		return fmt.Errorf("create agent directory: %w", err)
	}
	data, err := json.MarshalIndent(registered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	if err := fsutil.AtomicWriteFile(m.cfg.AgentConfigFile(name), data, 0o600); err != nil {
		return err
	}

	memFile := m.cfg.AgentMemoryFile(name)
	if _, err := os.Stat(memFile); os.IsNotExist(err) {
		descLine := ""
		if description != "" {
			descLine = "\n" + description
		}
		seed := fmt.Sprintf(memoryTemplate, name, name, descLine)
		if err := fsutil.AtomicWriteFile(memFile, []byte(seed), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes the agent from the metadata document. Its directory
// and memory stay on disk for the operator.
func (m *Manager) Unregister(ctx context.Context, name string) error {
	_, err := m.store.Transact(ctx, func(agents []Agent) ([]Agent, error) {
		kept := agents[:0]
		for _, a := range agents {
			if a.Name != name {
				kept = append(kept, a)
			}
		}
		return kept, nil
	})
	return err
}

// EnsureDefault registers the default agent if it does not exist yet.
func (m *Manager) EnsureDefault(ctx context.Context) error {
	if _, ok := m.GetConfig(DefaultAgent); ok {
		return nil
	}
	return m.Register(ctx, DefaultAgent, "General-purpose default agent", "")
}
