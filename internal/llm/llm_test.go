package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeParsesResultEvent(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash"},{"type":"tool_use","name":"Read"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash"}]}}`,
		`{"type":"result","subtype":"success","result":"done","total_cost_usd":0.042,"num_turns":3,"duration_ms":1500,"session_id":"sess-1"}`,
	}, "\n")

	var texts []string
	inv := &CLIInvoker{}
	res, err := inv.consume(strings.NewReader(stream), func(s string) { texts = append(texts, s) })
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, 0.042, res.CostUSD)
	assert.Equal(t, 3, res.Turns)
	assert.InDelta(t, 1.5, res.DurationSeconds, 0.001)
	assert.Equal(t, []string{"Bash", "Read"}, res.ToolsUsed)
	assert.Equal(t, []string{"hello"}, texts)
}

func TestConsumeErrorResult(t *testing.T) {
	stream := `{"type":"result","subtype":"error_during_execution","is_error":true,"result":"limit reached"}`

	inv := &CLIInvoker{}
	_, err := inv.consume(strings.NewReader(stream), nil)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, err.Error(), "limit reached")
}

func TestConsumeTruncatedStream(t *testing.T) {
	stream := `{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`

	inv := &CLIInvoker{}
	_, err := inv.consume(strings.NewReader(stream), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a result")
}

func TestConsumeIgnoresNoise(t *testing.T) {
	stream := strings.Join([]string{
		`not json at all`,
		`{"type":"mystery_event"}`,
		`{"type":"result","subtype":"success","result":"ok","cost_usd":0.01,"num_turns":1}`,
	}, "\n")

	inv := &CLIInvoker{}
	res, err := inv.consume(strings.NewReader(stream), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.Equal(t, 0.01, res.CostUSD)
}

func TestBinaryDefault(t *testing.T) {
	assert.Equal(t, "claude", (&CLIInvoker{}).binary())
	assert.Equal(t, "/usr/bin/claude", (&CLIInvoker{Binary: "/usr/bin/claude"}).binary())
}
