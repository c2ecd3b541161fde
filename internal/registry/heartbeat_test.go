package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatLoopRefreshesRecord(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "registry.json"), 10*time.Millisecond, 5*time.Minute)
	inst, err := r.Register(context.Background(), "invoke", "default", "", "")
	require.NoError(t, err)

	hb := r.StartHeartbeat(inst.InstanceID)
	time.Sleep(50 * time.Millisecond)
	hb.Stop()

	active, err := r.GetActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Greater(t, active[0].LastHeartbeat, inst.LastHeartbeat)
}

func TestHeartbeatLoopStopIsPromptAndIdempotent(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "registry.json"), time.Hour, 5*time.Minute)
	inst, err := r.Register(context.Background(), "invoke", "default", "", "")
	require.NoError(t, err)

	hb := r.StartHeartbeat(inst.InstanceID)
	start := time.Now()
	hb.Stop()
	// Stop must not wait for the hour-long tick interval.
	assert.Less(t, time.Since(start), time.Second)
	hb.Stop()
}

func TestHeartbeatLoopSurvivesPrunedRecord(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "registry.json"), 5*time.Millisecond, 5*time.Minute)
	inst, err := r.Register(context.Background(), "invoke", "default", "", "")
	require.NoError(t, err)

	hb := r.StartHeartbeat(inst.InstanceID)
	// Deregister underneath the running loop; ticks become no-ops.
	require.NoError(t, r.Deregister(context.Background(), inst.InstanceID, StatusFinished))
	time.Sleep(30 * time.Millisecond)
	hb.Stop()

	active, err := r.GetActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}
