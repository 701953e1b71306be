// Package config loads bxr configuration from the environment, an optional
// .env file and the per-project .bxr.yaml artifact.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration artifact that marks an index root.
const FileName = ".bxr.yaml"

// DefaultMinTokenLength is the shortest identifier that gets indexed.
const DefaultMinTokenLength = 5

// ProjectConfig is the content of .bxr.yaml.
type ProjectConfig struct {
	Version int            `yaml:"version"`
	Index   DatabaseConfig `yaml:"index"`
	Scan    ScanConfig     `yaml:"scan"`
}

// ScanConfig controls which files are indexed and how.
type ScanConfig struct {
	MinTokenLength int `yaml:"min_token_length"`

	// Extensions overrides the built-in allow-list when non-empty.
	Extensions []string `yaml:"extensions,omitempty"`

	RespectGitignore bool `yaml:"respect_gitignore"`
}

// DefaultProjectConfig returns the configuration written by `bxr create`.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Index:   DefaultDatabaseConfig(),
		Scan: ScanConfig{
			MinTokenLength: DefaultMinTokenLength,
		},
	}
}

// LoadProjectConfig reads a .bxr.yaml file. Missing fields keep their defaults.
func LoadProjectConfig(path string) (ProjectConfig, error) {
	cfg := DefaultProjectConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Scan.MinTokenLength < 1 {
		cfg.Scan.MinTokenLength = DefaultMinTokenLength
	}
	return cfg, nil
}

// SaveProjectConfig writes cfg to path atomically.
func SaveProjectConfig(path string, cfg ProjectConfig) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming config: %w", err)
	}
	return nil
}

// WithEnv returns a copy of c with environment overrides applied:
//   - BXR_DB_TYPE, BXR_DB_PATH, BXR_DB_DSN (see LoadDatabaseConfigFromEnv)
//   - BXR_MIN_TOKEN_LEN: shortest indexed identifier (default: 5)
//   - BXR_RESPECT_GITIGNORE: skip files matched by .gitignore (default: false)
func (c ProjectConfig) WithEnv() ProjectConfig {
	c.Index = c.Index.WithEnv()
	if v := os.Getenv("BXR_MIN_TOKEN_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scan.MinTokenLength = n
		}
	}
	if v := os.Getenv("BXR_RESPECT_GITIGNORE"); v != "" {
		c.Scan.RespectGitignore = parseBool(v, c.Scan.RespectGitignore)
	}
	return c
}

// CLIConfig holds presentation settings that never reach the index.
type CLIConfig struct {
	// Pager is the command rows are piped through.
	Pager string
	// LineCacheSize is the number of files whose lines are kept in memory.
	LineCacheSize int
}

// DefaultCLIConfig returns the presentation defaults.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Pager:         "less -FRSX",
		LineCacheSize: 64,
	}
}

// LoadCLIConfigFromEnv reads BXR_PAGER and BXR_LINE_CACHE_SIZE.
func LoadCLIConfigFromEnv() CLIConfig {
	cfg := DefaultCLIConfig()
	if v := os.Getenv("BXR_PAGER"); v != "" {
		cfg.Pager = v
	}
	if v := os.Getenv("BXR_LINE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LineCacheSize = n
		}
	}
	return cfg
}

// LoadDotEnv loads dir/.env into the process environment if it exists.
// Variables that are already set win.
func LoadDotEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// parseBool parses a string as boolean with a default value.
func parseBool(s string, defaultVal bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled":
		return false
	default:
		return defaultVal
	}
}
