package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: slog.LevelInfo, Format: "text"}, &buf)
	logger.Info("batch started", "step", "epochs")
	if !strings.Contains(buf.String(), "step=epochs") {
		t.Errorf("expected text attrs, got: %s", buf.String())
	}

	buf.Reset()
	logger = NewWithWriter(Options{Level: slog.LevelInfo, Format: "json"}, &buf)
	logger.Info("batch started", "step", "epochs")
	if !strings.Contains(buf.String(), `"step":"epochs"`) {
		t.Errorf("expected JSON attrs, got: %s", buf.String())
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: slog.LevelWarn}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO should be filtered at WARN level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("WARN should appear: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
