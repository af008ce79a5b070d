// Package logging provides the structured logger shared by every component.
// It is a thin wrapper over log/slog that stamps each record with the
// service name and build version.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
)

// Logger embeds *slog.Logger, so all slog methods are available directly.
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from config. Format "text" produces human-readable
// output for development; anything else is JSON. Output "stderr" writes to
// stderr; anything else to stdout.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "lunasphere"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// parseLevel maps a config string to a slog.Level. Unrecognised values
// (including empty) fall back to info so a typo never silences the log.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger carrying additional default attributes,
// typically a "component" tag.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the startup logger used before config is loaded:
// JSON to stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
