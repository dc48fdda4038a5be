// Package engine serves member requests against a star schema.
// It owns the database adapter, the member readers and caches of every
// hierarchy and cube, and the change log that invalidates them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/change"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/exec"
	"github.com/leapstack-labs/leapolap/internal/notifier"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/leapstack-labs/leapolap/internal/state"
	"github.com/leapstack-labs/leapolap/pkg/adapter"
)

// Engine answers member, tuple and predicate requests for one schema.
type Engine struct {
	// Database adapter (lazy connected)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	exec    *exec.Executor
	factory *constraint.Factory
	tracker *change.Tracker
	store   *state.SQLiteStore
	poller  *change.Poller
	changes *notifier.Notifier
	logger  *slog.Logger
	// running is set while Run polls the change log.
	running atomic.Bool

	policy       cache.PolicyConfig
	completion   bool
	schemaPath   string
	watchSchema  bool
	pollInterval time.Duration

	mu    sync.RWMutex
	model *model
}

// Config holds engine configuration.
type Config struct {
	// Schema is the built schema to serve. Required.
	Schema *schema.Schema
	// SchemaPath is watched for changes when WatchSchema is set.
	SchemaPath  string
	WatchSchema bool

	// Adapter is used as is when set and is assumed connected.
	// Otherwise one is created from AdapterConfig on first use.
	Adapter       adapter.Adapter
	AdapterConfig adapter.Config

	// StatePath is the change log database. Empty disables the log.
	StatePath    string
	PollInterval time.Duration

	Cache cache.PolicyConfig
	// NativeNonEmpty evaluates non-empty contexts in SQL.
	NativeNonEmpty bool
	// Completion tops up short limited tuple loads.
	Completion bool

	Logger *slog.Logger
}

// New creates an engine. The database is connected on the first request.
func New(cfg Config) (*Engine, error) {
	if cfg.Schema == nil {
		return nil, errors.New("engine: schema is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db := cfg.Adapter
	connected := db != nil
	if db == nil {
		if cfg.AdapterConfig.Type == "" {
			cfg.AdapterConfig.Type = "duckdb"
		}
		var err error
		db, err = adapter.NewAdapter(cfg.AdapterConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database adapter: %w", err)
		}
	}

	e := &Engine{
		db:           db,
		dbConfig:     cfg.AdapterConfig,
		dbConnected:  connected,
		exec:         exec.New(db, logger),
		factory:      constraint.NewFactory(cfg.NativeNonEmpty, logger),
		tracker:      change.NewTracker(),
		changes:      notifier.New(),
		logger:       logger,
		policy:       cfg.Cache,
		completion:   cfg.Completion,
		schemaPath:   cfg.SchemaPath,
		watchSchema:  cfg.WatchSchema,
		pollInterval: cfg.PollInterval,
	}

	m, err := e.buildModel(cfg.Schema)
	if err != nil {
		return nil, err
	}
	e.model = m

	if cfg.StatePath != "" {
		if err := e.openStore(cfg.StatePath); err != nil {
			return nil, err
		}
	}

	logger.Debug("engine initialized",
		"schema", cfg.Schema.Name,
		"cubes", len(cfg.Schema.Cubes),
		"hierarchies", len(cfg.Schema.Hierarchies()),
		"adapter_type", db.Dialect().Name,
	)
	return e, nil
}

func (e *Engine) openStore(path string) error {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore()
	if err := store.Open(path); err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to migrate state store: %w", err)
	}
	e.store = store

	opts := []change.PollerOption{
		change.WithRemove(e.RemoveMember),
		change.WithApplied(e.publishEvent),
		change.WithLogger(e.logger),
	}
	if e.pollInterval > 0 {
		opts = append(opts, change.WithInterval(e.pollInterval))
	}
	e.poller = change.NewPoller(store, e.tracker, opts...)
	return nil
}

// ensureDBConnected lazily connects to the database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)
	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	e.dbConnected = true
	return nil
}

// Notifier publishes every cache invalidation the engine applies.
func (e *Engine) Notifier() *notifier.Notifier { return e.changes }

// publishEvent runs after the poller applied ev: tuple results spanning
// hierarchies are dropped and subscribers are told.
func (e *Engine) publishEvent(ev state.ChangeEvent) {
	e.current().tuples.FlushPartials()
	e.changes.Publish(notifier.Change{Kind: string(ev.Kind), Hierarchy: ev.Hierarchy, Member: ev.Member})
}

// Schema returns the schema being served.
func (e *Engine) Schema() *schema.Schema { return e.current().schema }

func (e *Engine) current() *model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Close releases the change log and the database connection.
func (e *Engine) Close() error {
	var errs []error

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state store: %w", err))
		}
	}

	e.dbMu.Lock()
	if e.dbConnected {
		if err := e.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		e.dbConnected = false
	}
	e.dbMu.Unlock()

	return errors.Join(errs...)
}
