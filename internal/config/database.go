package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"bxr/internal/db"
)

// DefaultIndexFile is the SQLite index artifact created at the index root.
const DefaultIndexFile = ".bxr.db"

// DatabaseConfig selects the index backend.
type DatabaseConfig struct {
	Type db.DatabaseType `yaml:"type"`

	// Path is the SQLite file. Relative paths are resolved against the index root.
	Path string `yaml:"path,omitempty"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn,omitempty"`
}

// DefaultDatabaseConfig returns a SQLite index at .bxr.db.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Type: db.DatabaseSQLite,
		Path: DefaultIndexFile,
	}
}

// LoadDatabaseConfigFromEnv returns the defaults overridden by the environment.
// Supports the following variables:
//   - BXR_DB_TYPE: sqlite or postgres (default: sqlite)
//   - BXR_DB_PATH: SQLite file (default: .bxr.db)
//   - BXR_DB_DSN: PostgreSQL connection string
func LoadDatabaseConfigFromEnv() DatabaseConfig {
	return DefaultDatabaseConfig().WithEnv()
}

// WithEnv returns a copy of c with BXR_DB_* overrides applied.
func (c DatabaseConfig) WithEnv() DatabaseConfig {
	if v := os.Getenv("BXR_DB_TYPE"); v != "" {
		c.Type = db.DatabaseType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := os.Getenv("BXR_DB_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("BXR_DB_DSN"); v != "" {
		c.DSN = v
	}
	return c
}

// Validate reports configuration that cannot be opened.
func (c DatabaseConfig) Validate() error {
	switch c.Type {
	case db.DatabaseSQLite, "":
		if c.Path == "" {
			return fmt.Errorf("sqlite index requires a path")
		}
	case db.DatabasePostgres:
		if c.DSN == "" {
			return fmt.Errorf("postgres index requires a DSN (BXR_DB_DSN)")
		}
	default:
		return fmt.Errorf("unknown database type %q", c.Type)
	}
	return nil
}

// Resolve returns a copy with a relative SQLite path joined onto root.
func (c DatabaseConfig) Resolve(root string) DatabaseConfig {
	if c.Path != "" && c.Path != ":memory:" && !filepath.IsAbs(c.Path) {
		c.Path = filepath.Join(root, c.Path)
	}
	return c
}

// ToDBConfig converts to the db package's open configuration.
func (c DatabaseConfig) ToDBConfig() db.Config {
	if c.Type == db.DatabasePostgres {
		return db.Config{
			Driver: db.DriverPostgres,
			DSN:    c.DSN,
		}
	}
	return db.DefaultConfig(c.Path)
}

// String describes the backend without leaking credentials.
func (c DatabaseConfig) String() string {
	if c.Type == db.DatabasePostgres {
		return "postgres:" + redactDSN(c.DSN)
	}
	return "sqlite:" + c.Path
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value form
		fields := strings.Fields(dsn)
		for i, f := range fields {
			if strings.HasPrefix(f, "password=") {
				fields[i] = "password=xxxxx"
			}
		}
		return strings.Join(fields, " ")
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
