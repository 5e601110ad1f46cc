package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger so packages can accept a single logging type.
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger writing to stdout at the given level.
// Unrecognized levels fall back to info.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to w. Tests use this to
// capture output.
func NewWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New("info")
}

// With returns a logger carrying the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
