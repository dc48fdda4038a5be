package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapolap/internal/cli/config"
	"github.com/leapstack-labs/leapolap/internal/cli/output"
	"github.com/leapstack-labs/leapolap/internal/engine"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Loaded
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext loads the schema and creates an engine over it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	s, err := schema.Load(cc.Cfg.SchemaPath)
	if err != nil {
		return nil, nil, err
	}
	eng, err := createEngine(cc.Cfg, s, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

func createEngine(cfg *config.Loaded, s *schema.Schema, logger *slog.Logger) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return engine.New(engine.Config{
		Schema:         s,
		SchemaPath:     cfg.SchemaPath,
		WatchSchema:    cfg.WatchSchema,
		AdapterConfig:  cfg.Target.AdapterConfig(),
		StatePath:      cfg.StatePath,
		PollInterval:   cfg.PollInterval,
		Cache:          cfg.Cache.PolicyConfig(),
		NativeNonEmpty: cfg.Native.NonEmpty,
		Completion:     cfg.Native.Completion,
		Logger:         logger,
	})
}

// request builds an engine request from the shared member flags. An
// empty cube selects the first cube of the schema.
func (cc *CommandContext) request(cube string, context []string, measure string) engine.Request {
	if cube == "" {
		if cubes := cc.Engine.Schema().Cubes; len(cubes) > 0 {
			cube = cubes[0].Name()
		}
	}
	return engine.Request{
		Cube:     cube,
		Role:     cc.Cfg.Role,
		Context:  context,
		Measure:  measure,
		NonEmpty: cc.Cfg.Native.NonEmpty,
	}
}
