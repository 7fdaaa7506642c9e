package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"WORKER_COUNT", "FILE_TIMEOUT", "OUTPUT_FORMAT", "TEXT_ENCODING", "DATABASE_URL", "NEO4J_URI"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.WorkerCount != 8 || cfg.FileTimeout != 30*time.Second || cfg.OutputFormat != "json" || cfg.TextEncoding != "latin1" {
		t.Errorf("defaults: got %+v", cfg)
	}
	if cfg.StoreEnabled() || cfg.GraphEnabled() {
		t.Error("persistence enabled without configuration")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("FILE_TIMEOUT", "2m")
	t.Setenv("PASCAL_MIN_LENGTH", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/cast")

	cfg := Load()
	if cfg.WorkerCount != 3 {
		t.Errorf("WorkerCount: got %d", cfg.WorkerCount)
	}
	if cfg.FileTimeout != 2*time.Minute {
		t.Errorf("FileTimeout: got %s", cfg.FileTimeout)
	}
	if cfg.PascalMinLength != 5 {
		t.Errorf("invalid PASCAL_MIN_LENGTH should fall back to 5, got %d", cfg.PascalMinLength)
	}
	if !cfg.StoreEnabled() {
		t.Error("store not enabled with DATABASE_URL set")
	}
}
