// Package config provides configuration loading and structs for the
// linematch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/procurehub/linematch/internal/learned"
	"github.com/procurehub/linematch/internal/match"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Matching  MatchingConfig  `yaml:"matching"`
	Synonyms  SynonymsConfig  `yaml:"synonyms"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds settings for the external embedding provider.
// An empty endpoint disables the semantic signal entirely.
type EmbeddingConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	CacheSize  int    `yaml:"cache_size"`
}

// MatchingConfig holds scoring and ranking settings.
type MatchingConfig struct {
	TopKCandidates int            `yaml:"top_k_candidates"`
	Weights        match.Weights  `yaml:"weights"`
	Adjuster       learned.Config `yaml:"adjuster"`
}

// SynonymsConfig points at an optional YAML file of extra abbreviation
// expansions, hot-reloaded while the server runs.
type SynonymsConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Synonyms.Path != "" {
		cfg.Synonyms.Path = expandPath(cfg.Synonyms.Path, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
