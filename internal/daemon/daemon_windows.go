//go:build windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}

func terminate(pid int) error {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func spawnDetached(argv []string, logFile string) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("empty daemon command")
	}
	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open daemon log %s: %w", logFile, err)
	}
	defer func() { _ = logF.Close() }()

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv is our own executable
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // DETACHED_PROCESS
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
