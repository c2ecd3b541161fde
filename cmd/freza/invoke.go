package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/history"
	"github.com/LoganGrasby/freza/internal/llm"
	"github.com/LoganGrasby/freza/internal/memory"
	"github.com/LoganGrasby/freza/internal/metrics"
	"github.com/LoganGrasby/freza/internal/prompt"
	"github.com/LoganGrasby/freza/internal/registry"
)

const (
	maxResponseStored = 5000
	maxSummaryStored  = 1000
)

// Invoke runs one direct agent invocation.
func (c command) Invoke(agentName, message, threadID string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Initialize(); err != nil {
		return err
	}
	if err := c.cleanup(cfg); err != nil {
		return err
	}
	return c.runInvocation(cfg, "invoke", "", agentName, message, threadID)
}

// Channel delivers a channel message. Routing: explicit agent flag beats the
// channel's default agent beats "default".
func (c command) Channel(channelName, message, agentName, threadID string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Initialize(); err != nil {
		return err
	}
	if err := c.cleanup(cfg); err != nil {
		return err
	}
	if agentName == "" {
		agentName = agent.DefaultAgent
		if ch, ok, err := channel.NewManager(cfg).Get(context.Background(), channelName); err == nil && ok && ch.DefaultAgent != "" {
			agentName = ch.DefaultAgent
		}
	}
	return c.runInvocation(cfg, "channel", channelName, agentName, message, threadID)
}

// runInvocation is the full lifecycle of one agent run: register in the
// instance registry, write short-term state, heartbeat, assemble prompts,
// call the model, record history, and deregister with the final status.
func (c command) runInvocation(cfg *config.Config, mode, channelName, agentName, message, threadID string) error {
	ctx := context.Background()

	agents := agent.NewManager(cfg)
	agentName, err := agent.ValidateName(agentName)
	if err != nil {
		return err
	}
	agentCfg, ok := agents.GetConfig(agentName)
	if !ok {
		return fmt.Errorf("unknown agent %q; register it first with:\n  freza register-agent %s \"Description\"",
			agentName, agentName)
	}

	reg := c.newRegistry(cfg)
	channels := channel.NewManager(cfg)
	mem := memory.NewManager(cfg, agentName)

	inst, err := reg.Register(ctx, mode, agentName, channelName, message)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] registered (mode=%s, agent=%s, pid=%d)\n", inst.InstanceID, mode, agentName, inst.PID)

	if err := mem.WriteShortTerm(inst.InstanceID, memory.ShortTerm{
		"instance_id":  inst.InstanceID,
		"mode":         mode,
		"agent_name":   agentName,
		"channel_name": channelName,
		"started_at":   inst.StartedAt,
		"current_task": "initializing",
		"status":       "running",
	}); err != nil {
		return err
	}

	hb := reg.StartHeartbeat(inst.InstanceID)
	finalStatus := registry.StatusFinished

	defer func() {
		hb.Stop()
		if err := reg.Deregister(ctx, inst.InstanceID, finalStatus); err != nil {
			fmt.Fprintf(os.Stderr, "[%s] deregister failed: %v\n", inst.InstanceID, err)
			return
		}
		fmt.Printf("[%s] deregistered\n", inst.InstanceID)
	}()

	hist, err := history.Open(cfg.HistoryDB())
	if err != nil {
		finalStatus = registry.StatusFailed
		return err
	}
	defer func() { _ = hist.Close() }()
	if err := hist.EnsureSchema(ctx); err != nil {
		finalStatus = registry.StatusFailed
		return err
	}

	channelPrompt := ""
	if mode == "channel" && channelName != "" {
		if ch, ok, err := channels.Get(ctx, channelName); err == nil && ok {
			channelPrompt = ch.SystemPrompt
		}
	}
	system := prompt.System(prompt.SystemInput{
		Cfg:           cfg,
		InstanceID:    inst.InstanceID,
		AgentName:     agentName,
		AgentPrompt:   agentCfg.SystemPrompt,
		ChannelPrompt: channelPrompt,
	})
	user := c.buildUserPrompt(ctx, cfg, reg, agents, channels, mem, inst, mode, channelName, message)

	_ = mem.UpdateShortTerm(inst.InstanceID, memory.ShortTerm{"current_task": "thinking"})

	resume := ""
	if threadID != "" {
		resume, err = hist.SessionForThread(ctx, threadID, agentName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] thread lookup failed: %v\n", inst.InstanceID, err)
		}
		if resume != "" {
			fmt.Printf("[%s] resuming thread %s (session=%.12s...)\n", inst.InstanceID, threadID, resume)
		}
	}

	fmt.Printf("[%s] invoking claude (model=%s, max_turns=%d)...\n", inst.InstanceID, cfg.Model, cfg.MaxTurns)

	var onText func(string)
	if mode == "channel" {
		onText = func(text string) { fmt.Print(text) }
	}

	invokeCtx, cancel := context.WithTimeout(ctx, cfg.InvokeTimeout)
	defer cancel()

	invoker := &llm.CLIInvoker{}
	start := time.Now()
	result, err := invoker.Invoke(invokeCtx, llm.Request{
		Prompt:       user,
		SystemPrompt: system,
		WorkDir:      cfg.AgentDir(agentName),
		Model:        cfg.Model,
		MaxTurns:     cfg.MaxTurns,
		Resume:       resume,
		OnText:       onText,
	})
	if onText != nil {
		fmt.Println()
	}
	if err != nil {
		finalStatus = registry.StatusFailed
		metrics.IncInvocation(mode, registry.StatusFailed)
		fmt.Fprintf(os.Stderr, "[%s] error: %v\n", inst.InstanceID, err)
		_ = mem.UpdateShortTerm(inst.InstanceID, memory.ShortTerm{
			"current_task": "failed",
			"status":       "failed",
			"error":        err.Error(),
		})
		_ = hist.Record(ctx, history.Record{
			InstanceID:     inst.InstanceID,
			Mode:           mode,
			AgentName:      agentName,
			ChannelName:    channelName,
			TriggerMessage: message,
			DurationSec:    time.Since(start).Seconds(),
			ThreadID:       threadID,
			Error:          err.Error(),
		})
		var lerr *llm.Error
		if errors.As(err, &lerr) {
			return err
		}
		return fmt.Errorf("invocation failed: %w", err)
	}

	if err := hist.Record(ctx, history.Record{
		InstanceID:     inst.InstanceID,
		Mode:           mode,
		AgentName:      agentName,
		ChannelName:    channelName,
		TriggerMessage: message,
		Response:       truncate(result.Response, maxResponseStored),
		DurationSec:    result.DurationSeconds,
		CostUSD:        result.CostUSD,
		Turns:          result.Turns,
		ToolsUsed:      result.ToolsUsed,
		SessionID:      result.SessionID,
		ThreadID:       threadID,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] history record failed: %v\n", inst.InstanceID, err)
	}

	_ = mem.UpdateShortTerm(inst.InstanceID, memory.ShortTerm{
		"current_task":     "complete",
		"status":           "finished",
		"response_summary": truncate(result.Response, maxSummaryStored),
		"duration_seconds": result.DurationSeconds,
		"cost_usd":         result.CostUSD,
	})

	metrics.IncInvocation(mode, registry.StatusFinished)
	metrics.ObserveInvocationDuration(mode, result.DurationSeconds)
	metrics.AddInvocationCost(agentName, result.CostUSD)

	fmt.Printf("[%s] done (%.1fs, $%.4f, %d turns, tools: %v)\n",
		inst.InstanceID, result.DurationSeconds, result.CostUSD, result.Turns, result.ToolsUsed)

	if mode != "channel" {
		lines := strings.Split(result.Response, "\n")
		for i, line := range lines {
			if i == 10 {
				fmt.Printf("  ... (%d lines total)\n", len(lines))
				break
			}
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

func (c command) buildUserPrompt(
	ctx context.Context,
	cfg *config.Config,
	reg *registry.Registry,
	agents *agent.Manager,
	channels *channel.Manager,
	mem *memory.Manager,
	inst registry.Instance,
	mode, channelName, message string,
) string {
	memContent, err := mem.Read(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[%s] memory read failed: %v\n", inst.InstanceID, err)
	}
	agentList, _ := agents.List(ctx)
	chanList, _ := channels.List(ctx)

	instances, _ := reg.GetActive(ctx)
	metrics.SetActiveInstances(len(instances))
	var others []prompt.InstanceView
	now := time.Now()
	for _, o := range instances {
		if o.InstanceID == inst.InstanceID {
			continue
		}
		task := ""
		if st := mem.ReadShortTerm(o.InstanceID); st != nil {
			if v, ok := st["current_task"].(string); ok {
				task = v
			}
		}
		others = append(others, prompt.InstanceView{
			ID:     o.InstanceID,
			Mode:   o.Mode,
			Agent:  o.AgentName,
			Task:   task,
			Uptime: o.Uptime(now),
		})
	}

	return prompt.User(prompt.UserInput{
		Memory: memContent,
		Agents: agentList,
		Self: prompt.InstanceView{
			ID:    inst.InstanceID,
			Mode:  mode,
			Agent: inst.AgentName,
			PID:   inst.PID,
		},
		Others:      others,
		Channels:    chanList,
		Mode:        mode,
		ChannelName: channelName,
		Trigger:     message,
	})
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (c command) printRecentLogs(ctx context.Context, cfg *config.Config) {
	fmt.Println("\n  Recent logs:")
	hist, err := history.Open(cfg.HistoryDB())
	if err != nil {
		return
	}
	defer func() { _ = hist.Close() }()
	if err := hist.EnsureSchema(ctx); err != nil {
		return
	}
	recs, err := hist.Recent(ctx, 5)
	if err != nil {
		return
	}
	for _, rec := range recs {
		status := "OK"
		if rec.Error != "" {
			status = "X"
		}
		fmt.Printf("    %s %s mode=%s agent=%s %.1fs  %s\n",
			status, rec.Timestamp.UTC().Format("15:04:05"),
			rec.Mode, rec.AgentName, rec.DurationSec, rec.InstanceID)
	}
}
