//go:build !windows

package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeCLI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-claude")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestInvokeRunsBinary(t *testing.T) {
	bin := writeFakeCLI(t, `cat <<'EOF'
{"type":"system","subtype":"init","session_id":"s1"}
{"type":"result","subtype":"success","result":"answer","total_cost_usd":0.002,"num_turns":1,"duration_ms":100,"session_id":"s1"}
EOF`)

	inv := &CLIInvoker{Binary: bin}
	res, err := inv.Invoke(context.Background(), Request{Prompt: "hi", Model: "sonnet", MaxTurns: 5})
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Response)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, 1, res.Turns)
}

func TestInvokeCancelled(t *testing.T) {
	bin := writeFakeCLI(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	inv := &CLIInvoker{Binary: bin}
	_, err := inv.Invoke(ctx, Request{Prompt: "hi"})
	require.Error(t, err)
}

func TestInvokeNonzeroExit(t *testing.T) {
	bin := writeFakeCLI(t, `echo '{"type":"result","subtype":"success","result":"ok","num_turns":1}'
exit 3`)

	inv := &CLIInvoker{Binary: bin}
	_, err := inv.Invoke(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited")
}
