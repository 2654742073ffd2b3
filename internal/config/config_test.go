package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/bbstats?sslmode=disable" {
		t.Errorf("Database.DSN: got %q", cfg.Database.DSN)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers: got %d, want 4", cfg.Analysis.Workers)
	}
	if cfg.Analysis.BatchSize != 1000 {
		t.Errorf("Analysis.BatchSize: got %d, want 1000", cfg.Analysis.BatchSize)
	}
	if cfg.Analysis.URLMaxLength != 300 {
		t.Errorf("Analysis.URLMaxLength: got %d, want 300", cfg.Analysis.URLMaxLength)
	}
	if cfg.Analysis.ForumBaseURL != "http://forum.mods.de" {
		t.Errorf("Analysis.ForumBaseURL: got %q", cfg.Analysis.ForumBaseURL)
	}
	if cfg.Baking.TopThreadCount != 5 {
		t.Errorf("Baking.TopThreadCount: got %d, want 5", cfg.Baking.TopThreadCount)
	}
	if cfg.Indexer.URL != "" {
		t.Errorf("Indexer.URL: got %q, want empty (disabled)", cfg.Indexer.URL)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BBSTATS_WORKERS", "8")
	t.Setenv("BBSTATS_DB", "postgres://example/forum")
	t.Setenv("BBSTATS_INDEXER_RATE_LIMIT", "2.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Analysis.Workers != 8 {
		t.Errorf("Analysis.Workers: got %d, want 8", cfg.Analysis.Workers)
	}
	if cfg.Database.DSN != "postgres://example/forum" {
		t.Errorf("Database.DSN: got %q", cfg.Database.DSN)
	}
	if cfg.Indexer.RateLimit != 2.5 {
		t.Errorf("Indexer.RateLimit: got %v, want 2.5", cfg.Indexer.RateLimit)
	}
}

func TestLoadConfigEnvIgnoresUnparsable(t *testing.T) {
	t.Setenv("BBSTATS_WORKERS", "lots")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers: got %d, want default 4", cfg.Analysis.Workers)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbstats.yaml")

	content := `
database:
  dsn: postgres://filehost/forum
analysis:
  workers: 2
  url_max_length: 120
baking:
  min_quote_relation_count: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}

	if cfg.Database.DSN != "postgres://filehost/forum" {
		t.Errorf("Database.DSN: got %q", cfg.Database.DSN)
	}
	if cfg.Analysis.Workers != 2 {
		t.Errorf("Analysis.Workers: got %d, want 2", cfg.Analysis.Workers)
	}
	if cfg.Analysis.URLMaxLength != 120 {
		t.Errorf("Analysis.URLMaxLength: got %d, want 120", cfg.Analysis.URLMaxLength)
	}
	// Unset file fields keep their defaults.
	if cfg.Analysis.BatchSize != 1000 {
		t.Errorf("Analysis.BatchSize: got %d, want default 1000", cfg.Analysis.BatchSize)
	}
	if cfg.Baking.MinQuoteRelationCount != 3 {
		t.Errorf("Baking.MinQuoteRelationCount: got %d, want 3", cfg.Baking.MinQuoteRelationCount)
	}
}

func TestLoadConfigFileEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbstats.yaml")

	if err := os.WriteFile(path, []byte("analysis:\n  workers: 2\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("BBSTATS_WORKERS", "16")

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}
	if cfg.Analysis.Workers != 16 {
		t.Errorf("Analysis.Workers: got %d, want env override 16", cfg.Analysis.Workers)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/bbstats.yaml"); err == nil {
		t.Fatal("LoadConfigFile() with missing file should fail")
	}
}
