package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"invalid level defaults to info", "invalid", slog.LevelInfo},
		{"empty level defaults to info", "", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level)
			if logger.Level() != tt.expectedLevel {
				t.Errorf("expected level %v, got %v", tt.expectedLevel, logger.Level())
			}
		})
	}
}

func TestLogger_WritesJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).
		WithService("carefinder").
		WithComponent("aggregator").
		WithError(errors.New("places timeout"))

	logger.Info("provider call failed", "strategy", "type", "query", "hospital")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	want := map[string]string{
		"msg":       "provider call failed",
		"service":   "carefinder",
		"component": "aggregator",
		"error":     "places timeout",
		"strategy":  "type",
		"query":     "hospital",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Info("should be dropped")
	logger.Debug("should be dropped too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %s", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("expected warn line to be written")
	}
}

func TestLoggerContext(t *testing.T) {
	logger := NewLogger("debug").WithRequestID("req-42")
	ctx := logger.WithContext(context.Background())

	if got := FromContext(ctx); got != logger {
		t.Error("expected the stored logger back from context")
	}

	if got := FromContext(context.Background()); got == nil {
		t.Error("expected a default logger when none is stored")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NewLogger("info")
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
	// must not panic
	Nop().Error("discarded")
}
