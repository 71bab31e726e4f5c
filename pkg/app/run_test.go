package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/clewhq/clew/internal/config"
	"github.com/clewhq/clew/internal/security"
)

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if _, err := ResolveConfigPath(); err == nil {
		t.Fatal("expected an error with no config file present")
	}

	path := filepath.Join(dir, "clew", "clew.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("ResolveConfigPath: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
}

func TestBuildRuntime_MinimalConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Version: "1",
		Model:   config.ModelConfig{Provider: "test", Name: "test-model"},
	}
	logger := slog.New(slog.DiscardHandler)

	rt, err := buildRuntime(context.Background(), cfg, logger, security.NewRedactor(), "test")
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}

	names := rt.Registry.Names()
	for _, want := range []string{"read_file", "write_file", "list_directory", "run_command", "web_fetch"} {
		if !slices.Contains(names, want) {
			t.Errorf("builtin %q not registered (have %v)", want, names)
		}
	}
	if rt.Gateway != nil || rt.Cron != nil || rt.Store != nil {
		t.Error("optional components built without configuration")
	}

	if err := rt.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()

	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, slog.LevelInfo, redactor)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level from config not applied")
	}

	logger = newLogger(config.LoggingConfig{}, slog.LevelWarn, redactor)
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default level should keep the caller's minimum")
	}
}
