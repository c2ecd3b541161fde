//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// pidAlive returns true if a process with the given pid exists. EPERM means
// the process exists but belongs to someone else, which still counts.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// terminate sends the graceful termination signal.
func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// kill sends the forceful, uncatchable signal.
func kill(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

// spawnDetached launches argv in a new session with stdin from /dev/null
// and stdout/stderr appended to logFile. The child is orphaned from the
// caller and survives its exit — the Go substitute for double-fork
// detachment.
func spawnDetached(argv []string, logFile string) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("empty daemon command")
	}
	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open daemon log %s: %w", logFile, err)
	}
	defer func() { _ = logF.Close() }()

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer func() { _ = devnull.Close() }()

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv is our own executable
	cmd.Stdin = devnull
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	// Detach fully; the new session leader is not our child to reap.
	_ = cmd.Process.Release()
	return pid, nil
}
