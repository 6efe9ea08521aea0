package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.MaxRooms != 20 {
		t.Fatalf("expected max rooms 20, got %d", cfg.MaxRooms)
	}
	if cfg.SweepInterval() != 5*time.Minute {
		t.Fatalf("expected sweep every 5m, got %s", cfg.SweepInterval())
	}
	if cfg.Inactivity() != 10*time.Minute {
		t.Fatalf("expected inactivity 10m, got %s", cfg.Inactivity())
	}
	if cfg.SimilarityThreshold != 0.70 {
		t.Fatalf("expected threshold 0.70, got %v", cfg.SimilarityThreshold)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.StoreBackend)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_ROOMS", "5")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("REMATCH_ENABLED", "false")
	t.Setenv("SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("STORE_URL", "http://example.test/")
	t.Setenv("GRACE_SECONDS", "-1")

	cfg := Load()
	if cfg.MaxRooms != 5 {
		t.Fatalf("expected 5, got %d", cfg.MaxRooms)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Fatalf("expected postgres, got %s", cfg.StoreBackend)
	}
	if cfg.RematchEnabled {
		t.Fatalf("expected rematch disabled")
	}
	if cfg.SimilarityThreshold != 0.8 {
		t.Fatalf("expected 0.8, got %v", cfg.SimilarityThreshold)
	}
	if cfg.StoreURL != "http://example.test" {
		t.Fatalf("expected trimmed url, got %s", cfg.StoreURL)
	}
	if cfg.GraceSeconds != 3 {
		t.Fatalf("expected invalid grace to keep default, got %d", cfg.GraceSeconds)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MAX_ROOMS=7\nPORT=9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("MAX_ROOMS", "")
	os.Unsetenv("MAX_ROOMS")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MAX_ROOMS") })
	cfg := Load()
	if cfg.Port != "7070" {
		t.Fatalf("expected existing PORT to win, got %s", cfg.Port)
	}
	if cfg.MaxRooms != 7 {
		t.Fatalf("expected MAX_ROOMS from file, got %d", cfg.MaxRooms)
	}
}

func TestLoadDotEnvEarlierFileWins(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "local.env")
	shared := filepath.Join(dir, "shared.env")
	if err := os.WriteFile(local, []byte("STORE_URL=http://local:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shared, []byte("STORE_URL=http://shared:9000\nMAX_ROOMS=5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORE_URL", "")
	t.Setenv("MAX_ROOMS", "")
	os.Unsetenv("STORE_URL")
	os.Unsetenv("MAX_ROOMS")
	t.Cleanup(func() {
		os.Unsetenv("STORE_URL")
		os.Unsetenv("MAX_ROOMS")
	})

	if err := LoadDotEnv(local, filepath.Join(dir, "missing.env"), shared); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Load()
	if cfg.StoreURL != "http://local:9000" {
		t.Fatalf("expected first file to win, got %s", cfg.StoreURL)
	}
	if cfg.MaxRooms != 5 {
		t.Fatalf("expected MAX_ROOMS from second file, got %d", cfg.MaxRooms)
	}
}
