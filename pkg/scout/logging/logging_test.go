package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogging(t *testing.T, cfg Config) func() {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "scout.log")
	}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return func() {
		if err := Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ParseLevel(%q) should wrap ErrInvalidLevel", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	logger := Get("pre-init")
	logger.Info("nobody hears this")
	if logger.Component() != "pre-init" {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.log")
	cleanup := setupLogging(t, Config{Level: "debug", Path: path})
	defer cleanup()

	Get("scanner").Info("scan started", "root", "/tmp/project")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "scan started") || !strings.Contains(string(data), "scanner") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestLoggerCreatedBeforeInitStartsWriting(t *testing.T) {
	early := Get("early-component")

	path := filepath.Join(t.TempDir(), "scout.log")
	cleanup := setupLogging(t, Config{Level: "info", Path: path})
	defer cleanup()

	early.Warn("after init")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "after init") {
		t.Errorf("early logger did not pick up Init: %q", data)
	}
}

func TestComponentLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.log")
	cleanup := setupLogging(t, Config{
		Level:      "debug",
		Path:       path,
		Components: map[string]string{"watcher": "error"},
	})
	defer cleanup()

	Get("watcher").Info("hidden")
	Get("monitor").Debug("visible")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Error("component override not applied")
	}
	if !strings.Contains(string(data), "visible") {
		t.Error("default level not applied")
	}
}

func TestConsoleMirror(t *testing.T) {
	var console bytes.Buffer
	cleanup := setupLogging(t, Config{Level: "debug", ConsoleLevel: "warn", Console: &console})
	defer cleanup()

	logger := Get("console-test")
	logger.Info("file only")
	logger.Warn("both")

	out := console.String()
	if strings.Contains(out, "file only") {
		t.Error("info should not reach console at warn level")
	}
	if !strings.Contains(out, "both") {
		t.Error("warn should reach console")
	}
}

func TestWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.log")
	cleanup := setupLogging(t, Config{Level: "info", Path: path})
	defer cleanup()

	Get("ctx").With("root", "/srv").Info("hello")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "root=/srv") {
		t.Errorf("With() context missing: %q", data)
	}
}

func TestInvalidConfig(t *testing.T) {
	if err := Init(Config{Level: "nope", Path: filepath.Join(t.TempDir(), "x.log")}); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := Init(Config{Level: "info", Components: map[string]string{"a": "nope"}, Path: filepath.Join(t.TempDir(), "x.log")}); err == nil {
		t.Error("expected error for invalid component level")
	}
	_ = Close()
}

func TestRotationBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 64, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	backups := w.Backups()
	if len(backups) == 0 || len(backups) > 2 {
		t.Errorf("expected 1..2 backups after pruning, got %d", len(backups))
	}
}

func TestWriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "scout.log"), RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close = %v, want os.ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
