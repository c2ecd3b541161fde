package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const ansiReset = "\033[0m"

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m", // cyan
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

// ColorTextHandler is a slog.TextHandler whose messages carry an
// ANSI-colored level prefix, for interactive CLI runs on a terminal.
type ColorTextHandler struct {
	*slog.TextHandler
	noColor bool
}

// NewColorTextHandler wraps a TextHandler writing to w. Colors are
// suppressed when the NO_COLOR environment variable is set.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, noColor bool) *ColorTextHandler {
	if os.Getenv("NO_COLOR") != "" {
		noColor = true
	}
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		noColor:     noColor,
	}
}

// Handle prefixes the record's message with its colored level name.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.noColor {
		return h.TextHandler.Handle(ctx, r)
	}
	color, ok := levelColors[r.Level]
	if !ok {
		color = ansiReset
	}
	r.Message = color + r.Level.String() + ansiReset + "  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}
