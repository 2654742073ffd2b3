// Package config provides configuration management for bbstats.
// It loads settings from environment variables with the BBSTATS_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML config file can be layered underneath the environment:
// defaults < file < environment. The pipeline itself never reads the
// environment directly; everything flows through Config.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the bbstats pipeline.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Baking   BakingConfig   `yaml:"baking"`
	Indexer  IndexerConfig  `yaml:"indexer"`
}

// DatabaseConfig contains the relational store settings.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string (default: postgres://localhost/bbstats?sslmode=disable)
	DSN string `yaml:"dsn"`
}

// AnalysisConfig contains settings for the post-content analysis pass.
type AnalysisConfig struct {
	Workers          int    `yaml:"workers"`           // Number of parallel partition workers (default: 4)
	BatchSize        int    `yaml:"batch_size"`        // Sink flush threshold in records (default: 1000)
	ProgressInterval int    `yaml:"progress_interval"` // Posts per progress delta message (default: 2000)
	URLMaxLength     int    `yaml:"url_max_length"`    // Normalized URL length cap (default: 300)
	ForumBaseURL     string `yaml:"forum_base_url"`    // Origin prefixed to absolute paths (default: http://forum.mods.de)
	BoardBasePath    string `yaml:"board_base_path"`   // Prefix for ./-relative paths (default: http://forum.mods.de/bb/)
	StateFile        string `yaml:"state_file"`        // Checkpoint database path (default: ./bbstats-state.db)
}

// BakingConfig contains settings for the aggregation bakers.
type BakingConfig struct {
	MinQuoteRelationCount int `yaml:"min_quote_relation_count"` // Social-graph noise cutoff (default: 5)
	MinLinkRelationCount  int `yaml:"min_link_relation_count"`  // Link-relation noise cutoff (default: 10)
	TopThreadCount        int `yaml:"top_thread_count"`         // Threads ranked per board-day (default: 5)
}

// IndexerConfig contains settings for the optional search-index pusher.
// The pusher is disabled unless URL is set.
type IndexerConfig struct {
	URL       string  `yaml:"url"`        // Search index ingest endpoint (default: "" = disabled)
	QueueSize int     `yaml:"queue_size"` // Bounded queue depth (default: 256)
	RateLimit float64 `yaml:"rate_limit"` // Requests per second (default: 20)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the BBSTATS_ prefix.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg, nil
}

// LoadConfigFile loads configuration from a YAML file, then applies
// environment variable overrides on top. Environment always wins so a
// deployment can pin a file and still tweak single settings.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig constructs a Config with all defaults filled in.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: "postgres://localhost/bbstats?sslmode=disable",
		},
		Analysis: AnalysisConfig{
			Workers:          4,
			BatchSize:        1000,
			ProgressInterval: 2000,
			URLMaxLength:     300,
			ForumBaseURL:     "http://forum.mods.de",
			BoardBasePath:    "http://forum.mods.de/bb/",
			StateFile:        "./bbstats-state.db",
		},
		Baking: BakingConfig{
			MinQuoteRelationCount: 5,
			MinLinkRelationCount:  10,
			TopThreadCount:        5,
		},
		Indexer: IndexerConfig{
			URL:       "",
			QueueSize: 256,
			RateLimit: 20,
		},
	}
}

// applyEnv overrides cfg fields from BBSTATS_* environment variables.
func applyEnv(cfg *Config) {
	cfg.Database.DSN = getEnv("BBSTATS_DB", cfg.Database.DSN)

	cfg.Analysis.Workers = getEnvInt("BBSTATS_WORKERS", cfg.Analysis.Workers)
	cfg.Analysis.BatchSize = getEnvInt("BBSTATS_BATCH_SIZE", cfg.Analysis.BatchSize)
	cfg.Analysis.ProgressInterval = getEnvInt("BBSTATS_PROGRESS_INTERVAL", cfg.Analysis.ProgressInterval)
	cfg.Analysis.URLMaxLength = getEnvInt("BBSTATS_URL_MAX_LENGTH", cfg.Analysis.URLMaxLength)
	cfg.Analysis.ForumBaseURL = getEnv("BBSTATS_FORUM_BASE_URL", cfg.Analysis.ForumBaseURL)
	cfg.Analysis.BoardBasePath = getEnv("BBSTATS_BOARD_BASE_PATH", cfg.Analysis.BoardBasePath)
	cfg.Analysis.StateFile = getEnv("BBSTATS_STATE_FILE", cfg.Analysis.StateFile)

	cfg.Baking.MinQuoteRelationCount = getEnvInt("BBSTATS_MIN_QUOTE_RELATION_COUNT", cfg.Baking.MinQuoteRelationCount)
	cfg.Baking.MinLinkRelationCount = getEnvInt("BBSTATS_MIN_LINK_RELATION_COUNT", cfg.Baking.MinLinkRelationCount)
	cfg.Baking.TopThreadCount = getEnvInt("BBSTATS_TOP_THREAD_COUNT", cfg.Baking.TopThreadCount)

	cfg.Indexer.URL = getEnv("BBSTATS_INDEXER_URL", cfg.Indexer.URL)
	cfg.Indexer.QueueSize = getEnvInt("BBSTATS_INDEXER_QUEUE_SIZE", cfg.Indexer.QueueSize)
	cfg.Indexer.RateLimit = getEnvFloat("BBSTATS_INDEXER_RATE_LIMIT", cfg.Indexer.RateLimit)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
