package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Defaults for tunables overridable via FREZA_* environment variables.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleThreshold    = 5 * time.Minute
	DefaultModel             = "claude-sonnet-4-5"
	DefaultMaxTurns          = 100
	DefaultInvokeTimeout     = 10 * time.Minute
	DefaultWebUIHost         = "127.0.0.1"
	DefaultWebUIPort         = 7888
)

// Config owns every well-known path and tunable of a freza workspace.
// All components receive it (or paths derived from it) by injection; there
// is no ambient singleton.
type Config struct {
	BaseDir string

	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration

	Model         string
	MaxTurns      int
	InvokeTimeout time.Duration
}

func defaultBaseDir() string {
	return filepath.Join(xdg.DataHome, "freza")
}

// New resolves a Config from the optional baseDir override and FREZA_*
// environment variables. Precedence: explicit baseDir > FREZA_BASE_DIR >
// XDG data home.
func New(baseDir string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("freza")
	v.AutomaticEnv()

	v.SetDefault("base_dir", defaultBaseDir())
	v.SetDefault("heartbeat_sec", int(DefaultHeartbeatInterval/time.Second))
	v.SetDefault("stale_sec", int(DefaultStaleThreshold/time.Second))
	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("timeout_sec", int(DefaultInvokeTimeout/time.Second))

	if baseDir == "" {
		baseDir = v.GetString("base_dir")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir %q: %w", baseDir, err)
	}

	c := &Config{
		BaseDir:           abs,
		HeartbeatInterval: time.Duration(v.GetInt("heartbeat_sec")) * time.Second,
		StaleThreshold:    time.Duration(v.GetInt("stale_sec")) * time.Second,
		Model:             v.GetString("model"),
		MaxTurns:          v.GetInt("max_turns"),
		InvokeTimeout:     time.Duration(v.GetInt("timeout_sec")) * time.Second,
	}
	return c, nil
}

func (c *Config) StateDir() string       { return filepath.Join(c.BaseDir, "state") }
func (c *Config) RegistryFile() string   { return filepath.Join(c.StateDir(), "registry.json") }
func (c *Config) ShortTermDir() string   { return filepath.Join(c.StateDir(), "short_term") }
func (c *Config) ChannelsDir() string    { return filepath.Join(c.BaseDir, "channels") }
func (c *Config) ChannelsMeta() string   { return filepath.Join(c.StateDir(), "channels.json") }
func (c *Config) AgentsDir() string      { return filepath.Join(c.BaseDir, "agents") }
func (c *Config) AgentsMeta() string     { return filepath.Join(c.StateDir(), "agents.json") }
func (c *Config) LogsDir() string        { return filepath.Join(c.StateDir(), "logs") }
func (c *Config) HistoryDB() string      { return filepath.Join(c.StateDir(), "history.db") }
func (c *Config) ToolsDir() string       { return filepath.Join(c.BaseDir, "tools") }
func (c *Config) WebUIPIDFile() string   { return filepath.Join(c.StateDir(), "webui.pid") }
func (c *Config) WebUILogFile() string   { return filepath.Join(c.StateDir(), "webui.log") }
func (c *Config) WebUITokenFile() string { return filepath.Join(c.StateDir(), "webui.token") }

// AgentDir returns the working directory of a named agent.
func (c *Config) AgentDir(name string) string { return filepath.Join(c.AgentsDir(), name) }

// AgentConfigFile returns the agent.json path for a named agent.
func (c *Config) AgentConfigFile(name string) string {
	return filepath.Join(c.AgentDir(name), "agent.json")
}

// AgentMemoryFile returns the long-term memory path for a named agent.
func (c *Config) AgentMemoryFile(name string) string {
	return filepath.Join(c.AgentDir(name), "memory.md")
}

// EnsureDirs creates the directory skeleton of the workspace.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.StateDir(),
		c.ShortTermDir(),
		c.ChannelsDir(),
		c.AgentsDir(),
		c.LogsDir(),
		c.ToolsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// Initialize prepares a workspace for first use: the directory skeleton plus
// empty metadata documents so readers never hit a missing file on day one.
func (c *Config) Initialize() error {
	if err := c.EnsureDirs(); err != nil {
		return err
	}
	for _, f := range []string{c.ChannelsMeta(), c.AgentsMeta()} {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			if err := os.WriteFile(f, []byte("[]"), 0o600); err != nil {
				return fmt.Errorf("seed %s: %w", f, err)
			}
		}
	}
	return nil
}
