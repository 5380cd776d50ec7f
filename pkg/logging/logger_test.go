package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	if err := logger.Info(CategoryCapture, "frame_sent", "delivered frame", map[string]any{"clients": 3}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if event.Level != LevelInfo {
		t.Errorf("level = %v, want %v", event.Level, LevelInfo)
	}
	if event.Category != CategoryCapture {
		t.Errorf("category = %v, want %v", event.Category, CategoryCapture)
	}
	if event.EventType != "frame_sent" {
		t.Errorf("type = %v, want frame_sent", event.EventType)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestLoggerMinLevel(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		emit     Level
		want     bool
	}{
		{name: "debug below info", minLevel: LevelInfo, emit: LevelDebug, want: false},
		{name: "info at info", minLevel: LevelInfo, emit: LevelInfo, want: true},
		{name: "warn above info", minLevel: LevelInfo, emit: LevelWarn, want: true},
		{name: "info below error", minLevel: LevelError, emit: LevelInfo, want: false},
		{name: "error at error", minLevel: LevelError, emit: LevelError, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf)
			logger.SetMinLevel(tt.minLevel)

			if err := logger.Log(Event{Level: tt.emit, Category: CategoryServer, EventType: "test"}); err != nil {
				t.Fatalf("Log() error = %v", err)
			}
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("logged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagecast.jsonl")
	var buf bytes.Buffer
	logger, err := NewFileLogger(&buf, path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	if err := logger.Warn(CategoryClient, "client_dropped", "send failed", nil); err != nil {
		t.Fatalf("Warn() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "client_dropped") {
		t.Errorf("log file missing event, got %q", data)
	}
	if buf.Len() == 0 {
		t.Error("expected event on primary writer too")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	if err := logger.Info(CategorySession, "noop", "", nil); err != nil {
		t.Fatalf("nil logger returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("nil logger Close returned error: %v", err)
	}
}
