package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/daemon"
	"github.com/LoganGrasby/freza/internal/history"
	"github.com/LoganGrasby/freza/internal/logger"
	"github.com/LoganGrasby/freza/internal/metrics"
	"github.com/LoganGrasby/freza/internal/server"
)

const shutdownGrace = 5 * time.Second

// WebUI runs or manages the web UI server per the given mode flags.
func (c command) WebUI(flags WebUIFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Initialize(); err != nil {
		return err
	}

	host := flags.Host
	if host == "" {
		host = config.DefaultWebUIHost
	}
	port := flags.Port
	if port == 0 {
		port = config.DefaultWebUIPort
	}
	sup := &daemon.Supervisor{PIDFile: cfg.WebUIPIDFile(), LogFile: cfg.WebUILogFile()}

	switch {
	case flags.GenerateToken:
		token, err := ensureToken(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("API token: %s\n", token)
		fmt.Printf("Stored in: %s\n", cfg.WebUITokenFile())
		return nil

	case flags.Stop:
		if sup.Stop() {
			fmt.Println("WebUI daemon stopped.")
		} else {
			fmt.Println("WebUI daemon is not running.")
		}
		return nil

	case flags.Status:
		if pid, running := sup.IsRunning(); running {
			fmt.Printf("WebUI daemon is running (PID %d)\n", pid)
		} else {
			fmt.Println("WebUI daemon is not running.")
		}
		return nil

	case flags.Daemon:
		pid, err := c.startDaemon(cfg, host, port)
		if err != nil {
			return err
		}
		fmt.Printf("WebUI daemon started (PID %d)\n", pid)
		fmt.Printf("  http://%s:%d\n", host, port)
		fmt.Printf("  Log: %s\n", cfg.WebUILogFile())
		return nil

	case flags.Foreground:
		return c.serve(cfg, sup, host, port, true)

	default:
		return c.serve(cfg, sup, host, port, false)
	}
}

// startDaemon re-execs this binary detached, running the server in the
// child's foreground.
func (c command) startDaemon(cfg *config.Config, host string, port int) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	sup := &daemon.Supervisor{PIDFile: cfg.WebUIPIDFile(), LogFile: cfg.WebUILogFile()}
	argv := []string{
		exe, "webui", "--foreground",
		"--base-dir", cfg.BaseDir,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if c.flags.Debug {
		argv = append(argv, "--debug")
	}
	return sup.Start(argv)
}

// serve runs the HTTP server until SIGINT/SIGTERM. In daemon mode the
// process owns the PID file and rotates its own log.
func (c command) serve(cfg *config.Config, sup *daemon.Supervisor, host string, port int, daemonMode bool) error {
	if daemonMode {
		logWriter := logger.SetupDaemon(cfg.WebUILogFile(), c.flags.Debug)
		defer func() { _ = logWriter.Close() }()
	}
	_ = metrics.Register(prometheus.DefaultRegisterer)

	token := readToken(cfg)
	if host == config.DefaultWebUIHost {
		// Loopback traffic is trusted; tokens gate remote binds only.
		token = ""
	}

	hist, err := history.Open(cfg.HistoryDB())
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()
	if err := hist.EnsureSchema(context.Background()); err != nil {
		return err
	}

	deps := server.Deps{
		Cfg:      cfg,
		Registry: c.newRegistry(cfg),
		Agents:   agent.NewManager(cfg),
		Channels: channel.NewManager(cfg),
		History:  hist,
		Token:    token,
		Spawn:    c.chatSpawner(cfg),
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := server.NewServer(addr, deps)
	if daemonMode {
		if err := sup.WritePID(); err != nil {
			return err
		}
		defer sup.RemovePID()
	}
	fmt.Printf("[PID %d] Freza Web UI running at http://%s\n", os.Getpid(), addr)
	fmt.Printf("  Base dir: %s\n", cfg.BaseDir)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	fmt.Println("\nShutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}

// chatSpawner launches detached channel invocations for web chat messages.
func (c command) chatSpawner(cfg *config.Config) server.SpawnFunc {
	return func(message, agentName, threadID string) error {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		cmd := exec.Command(exe, // #nosec G204 -- re-exec of this binary
			"--base-dir", cfg.BaseDir,
			"channel", "webui", message,
			"--agent", agentName,
			"--thread-id", threadID,
		)
		if err := cmd.Start(); err != nil {
			return err
		}
		go func() { _ = cmd.Wait() }()
		return nil
	}
}

// ensureToken returns the stored API token, generating one on first use.
func ensureToken(cfg *config.Config) (string, error) {
	if token := readToken(cfg); token != "" {
		return token, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(cfg.WebUITokenFile(), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

func readToken(cfg *config.Config) string {
	data, err := os.ReadFile(cfg.WebUITokenFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
