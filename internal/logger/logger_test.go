package logger

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.out {
			t.Errorf("parseLevel(%q)=%v want %v", tt.in, got, tt.out)
		}
	}
}

func TestInit(t *testing.T) {
	Init("debug", "text")
	if defaultLogger == nil {
		t.Fatal("defaultLogger not initialized")
	}

	Init("info", "json")
	if defaultLogger == nil {
		t.Fatal("defaultLogger not initialized for json format")
	}

	// Logging through the package functions must not panic.
	Info("info message", "key", "value")
	Warn("warn message")
	Debug("debug message")
	Error("error message", "error", "boom")
}

func TestWith(t *testing.T) {
	Init("info", "text")
	l := With("component", "test")
	if l == nil {
		t.Fatal("With returned nil")
	}
	l.Info("message with attrs")
}
