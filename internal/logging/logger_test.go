package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// readEntries closes logger and returns the decoded JSON lines of its file.
func readEntries(t *testing.T, logger *Logger, dir string) []map[string]any {
	t.Helper()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil
	}
	var entries []map[string]any
	for i, line := range strings.Split(trimmed, "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
			t.Errorf("log file was not created in %s", dir)
		}
	})

	t.Run("no sinks discards output", func(t *testing.T) {
		logger, err := New(Options{Level: LevelInfo})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if logger.writer != nil {
			t.Error("expected no file writer when Dir is empty")
		}
		logger.Info("dropped")
		if err := logger.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("invalid level falls back to INFO", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(dir, "invalid")
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.Debug("hidden")
		logger.Info("shown")

		entries := readEntries(t, logger, dir)
		if len(entries) != 1 || entries[0]["msg"] != "shown" {
			t.Errorf("entries = %v, want only the INFO message", entries)
		}
	})
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	entries := readEntries(t, logger, dir)
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}

	expectedLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, entry := range entries {
		if entry["level"] != expectedLevels[i] {
			t.Errorf("line %d: level = %v, want %s", i, entry["level"], expectedLevels[i])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: key = %v, want value", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "warn")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	if entries := readEntries(t, logger, dir); len(entries) != 2 {
		t.Fatalf("expected 2 log lines (WARN and ERROR only), got %d", len(entries))
	}
}

func TestContextHelpers(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.WithComponent("handler").
		WithRequest(7, "write a.txt hi").
		WithResource("a.txt").
		Info("request completed", "outcome", "written")

	entries := readEntries(t, logger, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := map[string]any{
		"component": "handler",
		"seq":       float64(7),
		"line":      "write a.txt hi",
		"resource":  "a.txt",
		"outcome":   "written",
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}
}

func TestWith(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if logger.With() != logger {
		t.Error("With() without args should return the same logger")
	}
	logger.With("foo", "bar", "count", 42).Info("test message")

	entries := readEntries(t, logger, dir)
	if entries[0]["foo"] != "bar" {
		t.Errorf("foo = %v, want bar", entries[0]["foo"])
	}
	if entries[0]["count"] != float64(42) {
		t.Errorf("count = %v, want 42", entries[0]["count"])
	}
}

func TestFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	logger, err := New(Options{
		Dir:        dir,
		Level:      LevelInfo,
		Rotation:   DefaultRotationConfig(),
		Console:    &out,
		ConsoleErr: &errOut,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log := logger.WithComponent("dispatcher")
	log.Info("request accepted", "seq", 1)
	log.Error("request failed", "seq", 2)

	entries := readEntries(t, logger, dir)
	if len(entries) != 2 {
		t.Fatalf("file entries = %d, want 2", len(entries))
	}
	if !strings.Contains(out.String(), "dispatcher: request accepted seq=1") {
		t.Errorf("console out = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[ERR] dispatcher: request failed seq=2") {
		t.Errorf("console err = %q", errOut.String())
	}
	if strings.Contains(out.String(), "request failed") {
		t.Error("ERROR record leaked to the regular console writer")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.WithResource("a.txt").Info("still nothing")

	if err := logger.Close(); err != nil {
		t.Errorf("NopLogger.Close() returned error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"Error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	expected := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if strings.Join(levels, ",") != strings.Join(expected, ",") {
		t.Errorf("ValidLevels() = %v, want %v", levels, expected)
	}
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("test message")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() returned error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Error("log file is empty, expected content")
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.WithRequest(uint64(j), "read a.txt").Info("concurrent write", "goroutine", n)
			}
		}(i)
	}
	wg.Wait()

	if entries := readEntries(t, logger, dir); len(entries) != 1000 {
		t.Errorf("expected 1000 log lines, got %d", len(entries))
	}
}
