package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	return &Supervisor{
		PIDFile: filepath.Join(dir, "webui.pid"),
		LogFile: filepath.Join(dir, "webui.log"),
	}
}

func TestIsRunningNoPIDFile(t *testing.T) {
	s := newSupervisor(t)
	pid, ok := s.IsRunning()
	assert.False(t, ok)
	assert.Zero(t, pid)
}

func TestIsRunningStaleFileCleanedUp(t *testing.T) {
	s := newSupervisor(t)
	// A pid far above pid_max on any sane configuration.
	require.NoError(t, os.WriteFile(s.PIDFile, []byte("99999999"), 0o644))

	_, ok := s.IsRunning()
	assert.False(t, ok)
	_, err := os.Stat(s.PIDFile)
	assert.True(t, os.IsNotExist(err))

	// Second call after cleanup also reports not running, without error.
	_, ok = s.IsRunning()
	assert.False(t, ok)
}

func TestIsRunningGarbagePIDFile(t *testing.T) {
	s := newSupervisor(t)
	require.NoError(t, os.WriteFile(s.PIDFile, []byte("not-a-pid"), 0o644))
	_, ok := s.IsRunning()
	assert.False(t, ok)
	_, err := os.Stat(s.PIDFile)
	assert.True(t, os.IsNotExist(err))
}

func TestIsRunningLiveProcess(t *testing.T) {
	s := newSupervisor(t)
	require.NoError(t, s.WritePID())

	pid, ok := s.IsRunning()
	assert.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsRunningRejectsRecycledPID(t *testing.T) {
	s := newSupervisor(t)
	// Our own pid but a start time that cannot match: simulates the pid
	// having been reused by a different process.
	content := fmt.Sprintf("%d\n{\"start_unix\":1}", os.Getpid())
	require.NoError(t, os.WriteFile(s.PIDFile, []byte(content), 0o644))

	if procStartUnix(os.Getpid()) == 0 {
		t.Skip("process start time unavailable on this platform")
	}
	_, ok := s.IsRunning()
	assert.False(t, ok)
}

func TestStopNothingRunning(t *testing.T) {
	s := newSupervisor(t)
	assert.False(t, s.Stop())
}

func TestWritePIDRoundTrip(t *testing.T) {
	s := newSupervisor(t)
	require.NoError(t, s.WritePID())

	pid, ok := s.IsRunning()
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)

	s.RemovePID()
	_, ok = s.IsRunning()
	assert.False(t, ok)
}
