// Package daemon manages the single long-running webui service process:
// detached start, PID-file liveness detection, and graceful-then-forced
// termination. It is safe to invoke repeatedly and concurrently from
// unrelated CLI invocations; the PID file is the sole authority on which
// process is the daemon.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// stopGrace is how long Stop waits between SIGTERM and SIGKILL.
	stopGrace     = 2 * time.Second
	stopPollEvery = 100 * time.Millisecond

	// startWait bounds how long Start polls for the child's PID file.
	startWait      = 3 * time.Second
	startPollEvery = 100 * time.Millisecond
)

// Supervisor controls the webui daemon through its PID file. The log file
// receives the detached process's redirected output.
type Supervisor struct {
	PIDFile string
	LogFile string
}

// pidMeta is the optional second line of the PID file. Recording the
// process start time lets IsRunning reject a recycled PID.
type pidMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// IsRunning reports the daemon PID if one is alive. A PID file naming a
// dead or recycled process is stale: it is removed and not-running is
// reported. A process we may not signal (EPERM) still counts as running;
// existence, not signalability, is the criterion.
func (s *Supervisor) IsRunning() (int, bool) {
	data, err := os.ReadFile(s.PIDFile)
	if err != nil {
		return 0, false
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || pid <= 0 {
		_ = os.Remove(s.PIDFile)
		return 0, false
	}

	if len(lines) >= 2 {
		var m pidMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[1])), &m); err == nil && m.StartUnix > 0 {
			if cur := procStartUnix(pid); cur > 0 && cur != m.StartUnix {
				// PID reused by an unrelated process.
				_ = os.Remove(s.PIDFile)
				return 0, false
			}
		}
	}

	if !pidAlive(pid) {
		_ = os.Remove(s.PIDFile)
		return 0, false
	}
	return pid, true
}

// Stop terminates the running daemon, if any. It sends the graceful signal,
// polls for death through the grace window, then escalates to a forceful
// kill. The PID file is removed unconditionally; a later IsRunning
// re-validates. Returns whether a process was signaled.
func (s *Supervisor) Stop() bool {
	pid, ok := s.IsRunning()
	if !ok {
		return false
	}
	if err := terminate(pid); err != nil {
		_ = os.Remove(s.PIDFile)
		return false
	}
	deadline := time.Now().Add(stopGrace)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			break
		}
		time.Sleep(stopPollEvery)
	}
	if pidAlive(pid) {
		_ = kill(pid)
	}
	_ = os.Remove(s.PIDFile)
	return true
}

// WritePID records the calling process as the authoritative daemon. The
// detached child calls this once it is truly running, never the parent.
func (s *Supervisor) WritePID() error {
	pid := os.Getpid()
	content := strconv.Itoa(pid)
	if start := procStartUnix(pid); start > 0 {
		meta, err := json.Marshal(pidMeta{StartUnix: start})
		if err == nil {
			content += "\n" + string(meta)
		}
	}
	if err := os.WriteFile(s.PIDFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write pid file %s: %w", s.PIDFile, err)
	}
	return nil
}

// RemovePID deletes the PID file. The daemon calls this on service-loop
// exit so supervisors never observe a PID file for a cleanly exited
// process.
func (s *Supervisor) RemovePID() {
	_ = os.Remove(s.PIDFile)
}

// Start replaces any running daemon with a freshly detached one executing
// argv (the re-exec command line for the foreground service). It returns
// the confirmed daemon PID once the child has written its PID file.
func (s *Supervisor) Start(argv []string) (int, error) {
	s.Stop()

	child, err := spawnDetached(argv, s.LogFile)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(startWait)
	for time.Now().Before(deadline) {
		if pid, ok := s.IsRunning(); ok {
			return pid, nil
		}
		time.Sleep(startPollEvery)
	}
	// Child never published its PID file; report the spawned pid as a
	// fallback so the caller has something to act on.
	return child, fmt.Errorf("daemon did not confirm startup within %s (spawned pid %d, log %s)",
		startWait, child, s.LogFile)
}
