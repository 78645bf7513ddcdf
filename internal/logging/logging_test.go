package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	l, err := New(Config{Level: "debug", Path: dir, Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	l.Info("hello")

	want := filepath.Join(dir, "taskforge-"+time.Now().Format("2006-01-02")+".log")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("log file %s not created: %v", want, err)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("New() with bad level error = nil")
	}
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.RetentionDays != 7 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestComponentWithoutInit(t *testing.T) {
	// Must not panic and must log somewhere.
	l := Component("test")
	l.Infof("component=%s", "test")
	l.InfoCtx("fields", map[string]any{"k": "v"})
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "taskforge-2020-01-01.log")
	if err := os.WriteFile(old, []byte("old"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	l := &Logger{logDir: dir}
	l.cleanOldLogs(7)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log file survived cleanup")
	}
}
