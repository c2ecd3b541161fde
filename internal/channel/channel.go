// Package channel manages channel metadata: external programs that route
// messages to agents.
package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/jsonstore"
)

// Channel is one entry in the channels metadata document.
type Channel struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	DefaultAgent string  `json:"default_agent,omitempty"`
	CreatedAt    float64 `json:"created_at"`
	UpdatedAt    float64 `json:"updated_at"`
}

// Manager performs CRUD over the channels document.
type Manager struct {
	cfg   *config.Config
	store *jsonstore.Store[[]Channel]
}

// NewManager creates a manager over the workspace's channels document.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, store: jsonstore.New[[]Channel](cfg.ChannelsMeta())}
}

// List returns all registered channels.
func (m *Manager) List(ctx context.Context) ([]Channel, error) {
	return m.store.Read(ctx)
}

// Get returns the named channel, or false if it is not registered.
func (m *Manager) Get(ctx context.Context, name string) (Channel, bool, error) {
	channels, err := m.store.Read(ctx)
	if err != nil {
		return Channel{}, false, err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch, true, nil
		}
	}
	return Channel{}, false, nil
}

// Register upserts a channel and creates its directory under the workspace.
func (m *Manager) Register(ctx context.Context, ch Channel) error {
	if ch.Name == "" {
		return fmt.Errorf("channel name required")
	}
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	_, err := m.store.Transact(ctx, func(channels []Channel) ([]Channel, error) {
		for i := range channels {
			if channels[i].Name == ch.Name {
				channels[i].Description = ch.Description
				channels[i].SystemPrompt = ch.SystemPrompt
				channels[i].DefaultAgent = ch.DefaultAgent
				channels[i].UpdatedAt = now
				return channels, nil
			}
		}
		ch.CreatedAt = now
		ch.UpdatedAt = now
		return append(channels, ch), nil
	})
	if err != nil {
		return err
	}
	dir := filepath.Join(m.cfg.ChannelsDir(), ch.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create channel directory: %w", err)
	}
	return nil
}

// Unregister removes the channel from the metadata document.
func (m *Manager) Unregister(ctx context.Context, name string) error {
	_, err := m.store.Transact(ctx, func(channels []Channel) ([]Channel, error) {
		kept := channels[:0]
		for _, ch := range channels {
			if ch.Name != name {
				kept = append(kept, ch)
			}
		}
		return kept, nil
	})
	return err
}
