package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("TREASURY_CONFIG_FILE", "")
	t.Setenv("DATA_BACKEND", "bogus")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected a validation error for an unknown backend")
	}

	t.Setenv("DATA_BACKEND", "memory")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataBackend != "memory" {
		t.Errorf("DataBackend = %q", cfg.DataBackend)
	}
}

func TestOpenStore(t *testing.T) {
	t.Setenv("TREASURY_CONFIG_FILE", "")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "treasury.db"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	logger := SetupLogger(slog.LevelError, "test")
	result, err := OpenStore(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer result.Cleanup()

	if err := result.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
