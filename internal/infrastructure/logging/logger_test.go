package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHandlerHonoursConfiguredLevel(t *testing.T) {
	h := newHandler(config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"})
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info records enabled at error level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error records disabled at error level")
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}
}

func TestWithReturnsChildLogger(t *testing.T) {
	logger := Default()
	child := logger.With("component", "test")
	if child == nil || child.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
	if child == logger {
		t.Error("With() should return a new Logger instance")
	}
}
