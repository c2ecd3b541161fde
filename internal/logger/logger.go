package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the daemon log.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Setup installs the process-wide slog default. Interactive CLI runs get
// the colored text handler on stderr; debug toggles verbosity.
func Setup(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}, false)
	slog.SetDefault(slog.New(h))
}

// SetupDaemon points slog at the rotating daemon log file. The daemon's
// stdout/stderr are already redirected there by the supervisor; structured
// log records go through lumberjack so the file cannot grow unbounded.
func SetupDaemon(logFile string, debug bool) io.WriteCloser {
	w := &lj.Logger{
		Filename:   logFile,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return w
}
