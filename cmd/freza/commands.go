package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/daemon"
	"github.com/LoganGrasby/freza/internal/logger"
	"github.com/LoganGrasby/freza/internal/memory"
	"github.com/LoganGrasby/freza/internal/registry"
)

// command binds subcommand implementations to the shared global flags.
type command struct {
	flags *GlobalFlags
}

func (c command) loadConfig() (*config.Config, error) {
	logger.Setup(c.flags.Debug)
	return config.New(c.flags.BaseDir)
}

func (c command) newRegistry(cfg *config.Config) *registry.Registry {
	return registry.New(cfg.RegistryFile(), cfg.HeartbeatInterval, cfg.StaleThreshold)
}

// resolvePromptArg expands @filepath arguments into the file's contents.
func resolvePromptArg(val string) (string, error) {
	if !strings.HasPrefix(val, "@") {
		return val, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(val, "@"))
	if err != nil {
		return "", fmt.Errorf("read system prompt file: %w", err)
	}
	return string(data), nil
}

const updateMemoryScript = `#!/bin/sh
# Append a line to this agent's long-term memory under an exclusive lock.
# Usage: update_memory.sh "text to append" [agent_name]
set -eu
text="$1"
agent="${2:-default}"
mem="%s/$agent/memory.md"
exec 9>"$mem.lock"
flock -x 9
printf '%%s\n' "$text" >> "$mem"
`

// Init prepares the workspace, registers the webui channel, and starts the
// web UI daemon.
func (c command) Init() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Initialize(); err != nil {
		return err
	}
	ctx := context.Background()

	agents := agent.NewManager(cfg)
	if err := agents.EnsureDefault(ctx); err != nil {
		return err
	}
	channels := channel.NewManager(cfg)
	if err := channels.Register(ctx, channel.Channel{
		Name:         "webui",
		Description:  "Web UI chat interface",
		DefaultAgent: agent.DefaultAgent,
	}); err != nil {
		return err
	}

	script := fmt.Sprintf(updateMemoryScript, cfg.AgentsDir())
	scriptPath := filepath.Join(cfg.ToolsDir(), "update_memory.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o750); err != nil { // #nosec G306 -- agents execute this
		return fmt.Errorf("write memory helper: %w", err)
	}

	pid, err := c.startDaemon(cfg, config.DefaultWebUIHost, config.DefaultWebUIPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: webui daemon did not start: %v\n", err)
	} else {
		fmt.Printf("\nWebUI daemon started (PID %d)\n", pid)
		fmt.Printf("  http://%s:%d\n", config.DefaultWebUIHost, config.DefaultWebUIPort)
		fmt.Printf("  Log: %s\n", cfg.WebUILogFile())
	}

	fmt.Printf("\nWorkspace: %s\n", cfg.BaseDir)
	fmt.Println("\nTo interact:")
	fmt.Println(`  freza invoke default "hello"`)
	fmt.Println(`  freza channel webui "hello"`)
	fmt.Println(`  freza register-agent researcher "Research agent"`)
	fmt.Println("  freza webui --status")
	fmt.Println("  freza status")
	return nil
}

// Cleanup removes short-term state files of instances no longer active.
func (c command) Cleanup() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	return c.cleanup(cfg)
}

func (c command) cleanup(cfg *config.Config) error {
	ctx := context.Background()
	active, err := c.newRegistry(cfg).GetActive(ctx)
	if err != nil {
		return err
	}
	activeIDs := make(map[string]bool, len(active))
	for _, inst := range active {
		activeIDs[inst.InstanceID] = true
	}
	memory.NewManager(cfg, agent.DefaultAgent).Cleanup(activeIDs)
	return nil
}

// RegisterAgent registers (or updates) an agent.
func (c command) RegisterAgent(name, description, systemPrompt string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	prompt, err := resolvePromptArg(systemPrompt)
	if err != nil {
		return err
	}
	if err := agent.NewManager(cfg).Register(context.Background(), name, description, prompt); err != nil {
		return err
	}
	fmt.Printf("Agent '%s' registered.\n", name)
	fmt.Printf("  Directory: %s\n", cfg.AgentDir(name))
	fmt.Printf("  Memory:    %s\n", cfg.AgentMemoryFile(name))
	if prompt != "" {
		fmt.Printf("  Custom system prompt: %d chars\n", len(prompt))
	}
	return nil
}

// RegisterChannel registers (or updates) a channel.
func (c command) RegisterChannel(name, description, systemPrompt, defaultAgent string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	prompt, err := resolvePromptArg(systemPrompt)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if defaultAgent != "" {
		validated, err := agent.ValidateName(defaultAgent)
		if err != nil {
			return err
		}
		if _, ok := agent.NewManager(cfg).GetConfig(validated); !ok {
			return fmt.Errorf("unknown default agent %q; register it first with:\n  freza register-agent %s \"Description\"",
				validated, validated)
		}
		defaultAgent = validated
	}
	if err := channel.NewManager(cfg).Register(ctx, channel.Channel{
		Name:         name,
		Description:  description,
		SystemPrompt: prompt,
		DefaultAgent: defaultAgent,
	}); err != nil {
		return err
	}
	fmt.Printf("Channel '%s' registered.\n", name)
	if prompt != "" {
		fmt.Printf("  Custom system prompt: %d chars\n", len(prompt))
	}
	if defaultAgent != "" {
		fmt.Printf("  Default agent: %s\n", defaultAgent)
	}
	return nil
}

// Status prints agents, active instances, the daemon state, channels, and
// recent invocations.
func (c command) Status() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	ctx := context.Background()

	agentList, err := agent.NewManager(cfg).List(ctx)
	if err != nil {
		return err
	}
	instances, err := c.newRegistry(cfg).GetActive(ctx)
	if err != nil {
		return err
	}
	chanList, err := channel.NewManager(cfg).List(ctx)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("  Freza Status")
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("\n  Agents: %d\n", len(agentList))
	for _, a := range agentList {
		fmt.Printf("    %s: %s\n", a.Name, a.Description)
		memBytes, err := os.ReadFile(cfg.AgentMemoryFile(a.Name))
		if err != nil {
			fmt.Println("      memory: no memory")
			continue
		}
		memLines := strings.Split(strings.TrimSpace(string(memBytes)), "\n")
		fmt.Printf("      memory: %d lines, %d bytes\n", len(memLines), len(memBytes))
		for i, line := range memLines {
			if i == 3 {
				fmt.Printf("        ... (%d more lines)\n", len(memLines)-3)
				break
			}
			fmt.Printf("        %s\n", line)
		}
	}
	if len(agentList) == 0 {
		fmt.Println("    (none)")
	}

	fmt.Printf("\n  Active instances: %d\n", len(instances))
	mem := memory.NewManager(cfg, agent.DefaultAgent)
	for _, inst := range instances {
		task := "?"
		if st := mem.ReadShortTerm(inst.InstanceID); st != nil {
			if v, ok := st["current_task"].(string); ok {
				task = v
			}
		}
		fmt.Printf("    %s  mode=%-8s  agent=%-12s  task=%-20s  uptime=%.0fs  pid=%d\n",
			inst.InstanceID, inst.Mode, inst.AgentName, task,
			inst.Uptime(time.Now()).Seconds(), inst.PID)
	}
	if len(instances) == 0 {
		fmt.Println("    (none)")
	}

	sup := &daemon.Supervisor{PIDFile: cfg.WebUIPIDFile(), LogFile: cfg.WebUILogFile()}
	if pid, running := sup.IsRunning(); running {
		fmt.Printf("\n  WebUI daemon: running (PID %d)\n", pid)
	} else {
		fmt.Println("\n  WebUI daemon: not running")
	}

	fmt.Printf("\n  Channels: %d\n", len(chanList))
	for _, ch := range chanList {
		promptInfo := ""
		if ch.SystemPrompt != "" {
			promptInfo = fmt.Sprintf("  [custom prompt: %d chars]", len(ch.SystemPrompt))
		}
		defaultAgent := ch.DefaultAgent
		if defaultAgent == "" {
			defaultAgent = agent.DefaultAgent
		}
		fmt.Printf("    %s: %s (agent=%s)%s\n", ch.Name, ch.Description, defaultAgent, promptInfo)
	}
	if len(chanList) == 0 {
		fmt.Println("    (none)")
	}

	c.printRecentLogs(ctx, cfg)
	fmt.Println()
	return nil
}
