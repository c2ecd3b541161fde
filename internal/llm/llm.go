// Package llm invokes the agent model. The concrete implementation shells
// out to the Claude Code CLI and consumes its stream-json output; callers
// depend only on the Invoker interface.
package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Request describes one invocation.
type Request struct {
	Prompt       string
	SystemPrompt string
	WorkDir      string
	Model        string
	MaxTurns     int
	Resume       string // session id to resume, "" for a fresh session

	// OnText receives assistant text as it streams; may be nil.
	OnText func(string)
}

// Result is the structured outcome of one invocation.
type Result struct {
	Response        string
	DurationSeconds float64
	CostUSD         float64
	Turns           int
	ToolsUsed       []string
	SessionID       string
}

// Error marks faults from the model invocation path, so callers can
// distinguish them from infrastructure faults.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Invoker performs agent invocations.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// CLIInvoker runs the Claude Code CLI in print mode with stream-json
// output.
type CLIInvoker struct {
	// Binary overrides the executable name; defaults to "claude".
	Binary string
}

func (c *CLIInvoker) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return "claude"
}

// streamEvent is the common envelope of stream-json lines.
type streamEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Message   *struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`

	// result event fields
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	CostUSD      float64 `json:"cost_usd"`
	NumTurns     int     `json:"num_turns"`
	DurationMS   float64 `json:"duration_ms"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// Invoke runs the CLI and parses its event stream. Unknown event types are
// ignored rather than treated as faults, so new CLI versions cannot break
// the invocation path.
func (c *CLIInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	args := []string{
		"--print",
		"--verbose",
		"--output-format", "stream-json",
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", req.MaxTurns))
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if req.Resume != "" {
		args = append(args, "--resume", req.Resume)
	}
	args = append(args, req.Prompt)

	cmd := exec.CommandContext(ctx, c.binary(), args...) // #nosec G204 -- fixed binary, structured args
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe model output: %w", err)
	}
	cmd.Stderr = nil

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errorf("start %s: %v", c.binary(), err)
	}

	res, parseErr := c.consume(stdout, req.OnText)
	waitErr := cmd.Wait()
	if parseErr != nil {
		return nil, parseErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return nil, errorf("invocation cancelled: %v", ctx.Err())
		}
		return nil, errorf("%s exited: %v", c.binary(), waitErr)
	}
	if res.DurationSeconds == 0 {
		res.DurationSeconds = time.Since(start).Seconds()
	}
	return res, nil
}

func (c *CLIInvoker) consume(r io.Reader, onText func(string)) (*Result, error) {
	res := &Result{}
	seenTools := make(map[string]bool)
	sawResult := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			// Tolerate non-JSON noise on stdout.
			continue
		}
		if ev.SessionID != "" {
			res.SessionID = ev.SessionID
		}
		switch ev.Type {
		case "assistant":
			if ev.Message == nil {
				continue
			}
			for _, b := range ev.Message.Content {
				switch b.Type {
				case "text":
					if onText != nil && b.Text != "" {
						onText(b.Text)
					}
				case "tool_use":
					if b.Name != "" && !seenTools[b.Name] {
						seenTools[b.Name] = true
						res.ToolsUsed = append(res.ToolsUsed, b.Name)
					}
				}
			}
		case "result":
			sawResult = true
			if ev.IsError {
				return nil, errorf("model returned error result: %s", ev.Result)
			}
			res.Response = ev.Result
			res.CostUSD = ev.TotalCostUSD
			if res.CostUSD == 0 {
				res.CostUSD = ev.CostUSD
			}
			res.Turns = ev.NumTurns
			if ev.DurationMS > 0 {
				res.DurationSeconds = ev.DurationMS / 1000.0
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errorf("read model output: %v", err)
	}
	if !sawResult {
		return nil, errorf("model stream ended without a result event")
	}
	return res, nil
}
