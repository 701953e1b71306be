// Package project finds the index that belongs to a working directory.
//
// An index root is a directory holding .bxr.yaml. Commands run from a
// subdirectory walk upward to the nearest such directory and remember how
// many levels they climbed so stored paths can be shown relative to where
// the user is.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bxr/internal/config"
	"bxr/internal/scanner"
	"bxr/internal/store"
)

// ErrNotFound is returned when no index root exists at or above a directory.
var ErrNotFound = errors.New("no index found (run `bxr create`)")

// Project is a located index root.
type Project struct {
	// Root is the absolute directory holding .bxr.yaml.
	Root string

	// Retro is how many directories Locate ascended from the caller's cwd.
	Retro int

	Config config.ProjectConfig

	cwd string
}

// Locate finds the nearest index root at or above cwd.
func Locate(cwd string) (*Project, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cwd, err)
	}

	dir := abs
	for retro := 0; ; retro++ {
		cfgPath := filepath.Join(dir, config.FileName)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			cfg, err := config.LoadProjectConfig(cfgPath)
			if err != nil {
				return nil, err
			}
			return &Project{Root: dir, Retro: retro, Config: cfg, cwd: abs}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotFound
		}
		dir = parent
	}
}

// Init writes cfg as root/.bxr.yaml and returns the project.
func Init(root string, cfg config.ProjectConfig) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if err := scanner.CheckRoot(abs); err != nil {
		return nil, err
	}
	if err := config.SaveProjectConfig(filepath.Join(abs, config.FileName), cfg); err != nil {
		return nil, err
	}
	return &Project{Root: abs, Config: cfg, cwd: abs}, nil
}

// ConfigPath returns the path of .bxr.yaml.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, config.FileName)
}

// Resolve maps a stored, root-relative path to one relative to the caller's
// working directory.
func (p *Project) Resolve(path string) string {
	full := filepath.Join(p.Root, filepath.FromSlash(path))
	if rel, err := filepath.Rel(p.cwd, full); err == nil {
		return rel
	}
	return strings.Repeat("../", p.Retro) + path
}

// Effective returns the project configuration with environment overrides.
// BXR_MIN_TOKEN_LEN only applies at create time; afterwards the length saved
// in .bxr.yaml is the one the index was built with.
func (p *Project) Effective() config.ProjectConfig {
	eff := p.Config.WithEnv()
	eff.Scan.MinTokenLength = p.Config.Scan.MinTokenLength
	return eff
}

// Database returns the index backend with relative paths resolved.
func (p *Project) Database() config.DatabaseConfig {
	return p.Effective().Index.Resolve(p.Root)
}

// OpenStore opens the project's index.
func (p *Project) OpenStore(ctx context.Context) (*store.Store, error) {
	dbCfg := p.Database()
	if err := dbCfg.Validate(); err != nil {
		return nil, err
	}
	return store.Open(ctx, dbCfg.ToDBConfig())
}

// ScanOptions builds scanner options from the project configuration.
func (p *Project) ScanOptions(logger *slog.Logger) scanner.Options {
	cfg := p.Effective().Scan
	opts := scanner.Options{
		MinTokenLength: cfg.MinTokenLength,
		Extensions:     cfg.Extensions,
		Logger:         logger,
	}
	if cfg.RespectGitignore {
		opts.Ignore = scanner.CompileGitignore(scanner.LoadGitignore(p.Root))
	}
	return opts
}

// Lock takes the writer lock without blocking.
func (p *Project) Lock() (*FileLock, error) {
	l := NewFileLock(p.Root)
	if err := l.TryLock(); err != nil {
		return nil, err
	}
	return l, nil
}
