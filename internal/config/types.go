// Package config holds the engine configuration shared by the CLI and
// anything else that opens a schema against a database.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/pkg/adapter"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, sqlite

	// File-based databases (DuckDB, SQLite)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; if not found, returns "main" as fallback.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the target into the adapter connection config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// CacheConfig selects the eviction policy of every member cache partition.
type CacheConfig struct {
	Policy string        `koanf:"policy"` // unbounded, lru, ttl
	Size   int           `koanf:"size"`
	TTL    time.Duration `koanf:"ttl"`
}

// PolicyConfig converts to the cache package form.
func (c CacheConfig) PolicyConfig() cache.PolicyConfig {
	return cache.PolicyConfig{Policy: cache.Policy(strings.ToLower(c.Policy)), Size: c.Size, TTL: c.TTL}
}

// NativeConfig toggles SQL-side evaluation.
type NativeConfig struct {
	// NonEmpty joins member queries to the fact table so only members
	// with data in the evaluation context are returned.
	NonEmpty bool `koanf:"non_empty"`
	// Completion tops up a limited load that came back short with a
	// second query excluding the members already read.
	Completion bool `koanf:"completion"`
}

// Config holds all engine configuration options.
type Config struct {
	SchemaPath   string        `koanf:"schema_path"`
	StatePath    string        `koanf:"state_path"`
	WatchSchema  bool          `koanf:"watch_schema"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Role         string        `koanf:"role"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Target       *TargetConfig `koanf:"target"`
	Cache        CacheConfig   `koanf:"cache"`
	Native       NativeConfig  `koanf:"native"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}
