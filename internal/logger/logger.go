// Package logger is the logging surface threaded through the evaluation
// pipeline. It is a thin wrapper over log/slog so the CLI can swap between
// plain text, JSON, and a colorized interactive format without the rest of
// the code caring which is active.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is what pipeline components log through. args are slog-style
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a logger whose records all carry the given attributes,
	// e.g. the run id for everything logged during one evaluation.
	With(args ...any) Logger
}

// New wraps an arbitrary slog handler.
func New(h slog.Handler) Logger {
	return &slogged{l: slog.New(h)}
}

// Default logs plain text to stderr at info level.
func Default() Logger {
	return Text(os.Stderr, slog.LevelInfo)
}

// Text logs in slog's key=value text format.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// JSON logs one JSON object per record, for machine-read runs.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Pretty logs in a colorized single-line format for interactive use.
func Pretty(w io.Writer, level slog.Level) Logger {
	return New(newPrettyHandler(w, level))
}

type slogged struct {
	l *slog.Logger
}

func (s *slogged) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogged) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogged) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogged) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogged) With(args ...any) Logger {
	return &slogged{l: s.l.With(args...)}
}

// ParseLevel maps the --log-level flag value to a slog level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
