// Package config provides configuration loading and structs for skin-lookup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`
}

// CacheConfig locates the skin cache to scan.
type CacheConfig struct {
	Root      string `yaml:"root"`
	Recursive *bool  `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to scan recursively; defaults to true when unset.
func (c *CacheConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// SearchConfig holds matching defaults.
type SearchConfig struct {
	DefaultAlgorithm string `yaml:"default_algorithm"`
	DefaultTopN      int    `yaml:"default_top_n"`
	MaxTopN          int    `yaml:"max_top_n"`
	// Workers is the scan worker pool size. 0 means one worker per core.
	Workers       int `yaml:"workers"`
	ProgressEvery int `yaml:"progress_every"`
}

// EmbeddingConfig holds ONNX feature-network settings for the two deep variants.
type EmbeddingConfig struct {
	SmallModelPath  string `yaml:"small_model_path"`
	DeepModelPath   string `yaml:"deep_model_path"`
	SmallDimensions int    `yaml:"small_dimensions"`
	DeepDimensions  int    `yaml:"deep_dimensions"`
	InputSize       int    `yaml:"input_size"`
	CacheSize       int    `yaml:"cache_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the scan-history database path.
type StorageConfig struct {
	HistoryPath string `yaml:"history_path"`
}

// OutputConfig holds where matched candidates are copied to.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Cache.Root = expandPath(cfg.Cache.Root, configDir)
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, configDir)
	cfg.Embedding.SmallModelPath = expandPath(cfg.Embedding.SmallModelPath, configDir)
	cfg.Embedding.DeepModelPath = expandPath(cfg.Embedding.DeepModelPath, configDir)
	cfg.Output.Dir = expandPath(cfg.Output.Dir, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Default returns a config with all defaults applied and home-relative paths
// expanded. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Cache.Root = expandPath(cfg.Cache.Root, ".")
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, ".")
	cfg.Embedding.SmallModelPath = expandPath(cfg.Embedding.SmallModelPath, ".")
	cfg.Embedding.DeepModelPath = expandPath(cfg.Embedding.DeepModelPath, ".")
	cfg.Output.Dir = expandPath(cfg.Output.Dir, ".")
	return cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
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
