package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapolap/internal/cache"
)

// Default configuration values.
const (
	DefaultSchemaFile   = "schema.yaml"
	DefaultStateFile    = ".leapolap/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultCachePolicy  = string(cache.PolicyUnbounded)
	DefaultPollInterval = 5 * time.Second
)

// Defaults returns the lowest configuration layer, keyed the way the
// config file is.
func Defaults() map[string]any {
	return map[string]any{
		"schema_path":       DefaultSchemaFile,
		"state_path":        DefaultStateFile,
		"watch_schema":      false,
		"poll_interval":     DefaultPollInterval.String(),
		"verbose":           false,
		"output":            DefaultOutput,
		"cache.policy":      DefaultCachePolicy,
		"native.non_empty":  true,
		"native.completion": true,
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(strings.ToLower(t.Type))
	}
	if strings.EqualFold(t.Type, "postgres") && t.Port == 0 {
		t.Port = 5432
	}
}

// Validate checks the settings that do not depend on the environment.
func (c *Config) Validate() error {
	if c.SchemaPath == "" {
		return fmt.Errorf("schema_path is required")
	}
	switch cache.Policy(strings.ToLower(c.Cache.Policy)) {
	case "", cache.PolicyUnbounded:
	case cache.PolicyLRU:
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive for the lru policy")
		}
	case cache.PolicyTTL:
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive for the ttl policy")
		}
	default:
		return fmt.Errorf("unknown cache.policy %q", c.Cache.Policy)
	}
	if c.Target == nil {
		return fmt.Errorf("target is required")
	}
	return c.Target.Validate()
}
