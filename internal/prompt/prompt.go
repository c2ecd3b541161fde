// Package prompt assembles the system and user prompts for an invocation.
// Builders are pure functions over snapshot data so they can be tested
// without touching the filesystem.
package prompt

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
)

const cmdName = "freza"

// SystemInput carries everything the system prompt needs.
type SystemInput struct {
	Cfg        *config.Config
	InstanceID string
	AgentName  string

	// AgentPrompt and ChannelPrompt are the optional custom instructions
	// configured at registration time.
	AgentPrompt   string
	ChannelPrompt string
}

// System renders the base system prompt plus any agent- and
// channel-specific instruction sections.
func System(in SystemInput) string {
	agentDir := in.Cfg.AgentDir(in.AgentName)
	memoryFile := in.Cfg.AgentMemoryFile(in.AgentName)
	shortTerm := filepath.Join(in.Cfg.ShortTermDir(), in.InstanceID+".json")
	updateMemory := filepath.Join(in.Cfg.ToolsDir(), "update_memory.sh")

	var b strings.Builder
	fmt.Fprintf(&b, `You are %q, an autonomous agent running in a persistent environment.
You may be one of several simultaneous instances of yourself.
Each agent has its own memory file and working directory.

## Environment
- Your agent directory: %s
- Long-term memory:     %s
- Short-term state:     %s
- Channels dir:         %s/
- Your instance ID:     %s
- Your agent name:      %s

## Memory Rules
- Edit %s directly for persistent knowledge.
  Prefer the locked helper for appends:
    %s "text to append"
- Keep memory concise: identity, core knowledge, active projects, channels.
- Update your short-term state file's "current_task" field so other
  instances know what you are doing.

## Agent System
You are part of a multi-agent system. Each agent has its own directory,
memory, and optional custom instructions.

To create a new agent:
  %s register-agent <name> "<description>" [--system-prompt "..."]

Agent directories live at %s/<name>/ and contain:
  - agent.json:  Agent configuration (name, description, system_prompt)
  - memory.md:   Agent-specific long-term memory

To invoke another agent directly:
  %s invoke <agent_name> "<message>" [--thread-id <id>]

## Channel System
Channels are external programs that route messages to specific agents.
1. Create a program in %s/<name>/
2. That program should call back:
     %s channel <name> "<message>" [--agent <agent_name>]
3. Register the channel:
     %s register-channel <name> "<description>" [--default-agent <name>]
4. To start/manage it as a background service, use systemd, supervisord,
   screen, or any method you prefer.
5. Document it in your long-term memory.

### Multi-turn threads
Pass --thread-id <id> to continue a conversation across invocations:
  %s channel <name> "<message>" --thread-id <id>
The same thread ID reuses the prior session, preserving context.

### Custom system prompts
Set a channel-specific system prompt at registration time:
  %s register-channel <name> "<desc>" --system-prompt "instructions"
  %s register-channel <name> "<desc>" --system-prompt @file.txt
The custom prompt is appended to the default system prompt for every
invocation on that channel.

## Behaviour
- Check what other instances are doing before starting work.
- Do not duplicate work another instance is already handling.
- You have full bash, file-editing, and network access.
`,
		in.AgentName,
		agentDir, memoryFile, shortTerm, in.Cfg.ChannelsDir(),
		in.InstanceID, in.AgentName,
		memoryFile, updateMemory,
		cmdName, in.Cfg.AgentsDir(), cmdName,
		in.Cfg.ChannelsDir(), cmdName, cmdName,
		cmdName, cmdName, cmdName,
	)

	if in.AgentPrompt != "" {
		fmt.Fprintf(&b, "\n## Agent-Specific Instructions\n%s\n", in.AgentPrompt)
	}
	if in.ChannelPrompt != "" {
		fmt.Fprintf(&b, "\n## Channel-Specific Instructions\n%s\n", in.ChannelPrompt)
	}
	return b.String()
}

// InstanceView is the per-instance snapshot shown in the user prompt.
type InstanceView struct {
	ID     string
	Mode   string
	Agent  string
	PID    int
	Task   string
	Uptime time.Duration
}

// UserInput carries the workspace snapshot for the user prompt.
type UserInput struct {
	Memory   string
	Agents   []agent.Agent
	Self     InstanceView
	Others   []InstanceView
	Channels []channel.Channel

	Mode        string
	ChannelName string
	Trigger     string
}

// User renders the per-invocation user prompt: memory, registered agents,
// active instances, channels, and the trigger section.
func User(in UserInput) string {
	var parts []string

	parts = append(parts, "## Your Long-Term Memory\n")
	if strings.TrimSpace(in.Memory) != "" {
		parts = append(parts, in.Memory)
	} else {
		parts = append(parts,
			"(Memory is empty -- this may be your first run. "+
				"Consider initialising it.)")
	}
	parts = append(parts, "")

	parts = append(parts, "## Registered Agents\n")
	if len(in.Agents) > 0 {
		for _, a := range in.Agents {
			marker := ""
			if a.Name == in.Self.Agent {
				marker = " (you)"
			}
			parts = append(parts, fmt.Sprintf("- **%s**: %s%s", a.Name, a.Description, marker))
		}
	} else {
		parts = append(parts, "(none)")
	}
	parts = append(parts, "")

	parts = append(parts, "## Active Instances\n")
	parts = append(parts, fmt.Sprintf("**You**: `%s` (mode=%s, agent=%s, pid=%d)",
		in.Self.ID, in.Self.Mode, in.Self.Agent, in.Self.PID))
	if len(in.Others) > 0 {
		parts = append(parts, fmt.Sprintf("\n%d other instance(s):\n", len(in.Others)))
		for _, o := range in.Others {
			task := o.Task
			if task == "" {
				task = "unknown"
			}
			parts = append(parts, fmt.Sprintf("- `%s` mode=%s agent=%s task=%q uptime=%.0fs",
				o.ID, o.Mode, o.Agent, task, o.Uptime.Seconds()))
		}
	} else {
		parts = append(parts, "\nYou are the only running instance.")
	}
	parts = append(parts, "")

	parts = append(parts, "## Registered Channels\n")
	if len(in.Channels) > 0 {
		for _, ch := range in.Channels {
			defaultAgent := ch.DefaultAgent
			if defaultAgent == "" {
				defaultAgent = agent.DefaultAgent
			}
			parts = append(parts, fmt.Sprintf("- **%s**: %s (default_agent=%s)",
				ch.Name, ch.Description, defaultAgent))
		}
	} else {
		parts = append(parts, "(none)")
	}
	parts = append(parts, "")

	parts = append(parts, "## Trigger\n")
	switch in.Mode {
	case "channel":
		parts = append(parts, fmt.Sprintf("**Incoming message** on channel `%s`:\n", in.ChannelName))
		parts = append(parts, fmt.Sprintf("```\n%s\n```\n", in.Trigger))
		parts = append(parts, "Respond to this message and take any appropriate actions.")
	case "invoke":
		parts = append(parts, fmt.Sprintf("**Direct invocation** of agent `%s`:\n", in.Self.Agent))
		parts = append(parts, fmt.Sprintf("```\n%s\n```\n", in.Trigger))
		parts = append(parts, "Respond to this message and take any appropriate actions.")
	}
	parts = append(parts, "")

	return strings.Join(parts, "\n")
}
