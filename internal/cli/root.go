// Package cli provides the command-line interface for LeapOLAP.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapolap/internal/cli/commands"
	"github.com/leapstack-labs/leapolap/internal/cli/config"
	"github.com/leapstack-labs/leapolap/internal/cli/output"
	"github.com/spf13/cobra"

	// Register the database adapters.
	_ "github.com/leapstack-labs/leapolap/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapolap/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapolap/pkg/adapters/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists the commands that run without configuration.
var skipConfig = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"version":    true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leapolap",
		Short: "LeapOLAP - ROLAP member cache and SQL constraint engine",
		Long: `LeapOLAP reads the members of star schema dimensions through a shared
member cache, generating the SQL that loads them from a relational
database.

It answers level, children, lookup and navigation requests, cross joins
levels into tuples, builds compound predicates for cell requests and
keeps every process's cache current through a shared change log.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, config.ConfigKey(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapolap.yaml)")
	pf.String("project-dir", "", "Project root that relative paths resolve against")
	pf.String("schema", "", "Path to the schema file")
	pf.String("state", "", "Path to the change log database (\":memory:\" for none shared)")
	pf.String("database", "", "Target database path or name")
	pf.String("target-type", "", "Target database type (duckdb|postgres|sqlite)")
	pf.String("role", "", "Evaluate requests as this role")
	pf.String("cache-policy", "", "Member cache policy (unbounded|lru|ttl)")
	pf.Int("cache-size", 0, "Entries per cache partition for the lru policy")
	pf.Duration("cache-ttl", 0, "Entry lifetime for the ttl policy")
	pf.Bool("non-empty", true, "Evaluate non-empty contexts natively in SQL")
	pf.Bool("completion", true, "Top up short limited tuple loads")
	pf.Bool("watch-schema", false, "Reload the schema file when it changes")
	pf.Duration("poll-interval", 0, "Time between change log polls")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|csv|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target-type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "postgres", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("cache-policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"unbounded", "lru", "ttl"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Commit: GitCommit, Date: BuildDate}))
	rootCmd.AddCommand(commands.NewMembersCommand())
	rootCmd.AddCommand(commands.NewChildrenCommand())
	rootCmd.AddCommand(commands.NewLookupCommand())
	rootCmd.AddCommand(commands.NewLeadCommand())
	rootCmd.AddCommand(commands.NewRangeCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewTuplesCommand())
	rootCmd.AddCommand(commands.NewPredicateCommand())
	rootCmd.AddCommand(commands.NewFlushCommand())
	rootCmd.AddCommand(commands.NewInvalidateCommand())
	rootCmd.AddCommand(commands.NewChangesCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewWarmCommand())
	rootCmd.AddCommand(commands.NewShellCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for LeapOLAP.

To load completions:

Bash:
  $ source <(leapolap completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leapolap completion bash > /etc/bash_completion.d/leapolap
  # macOS:
  $ leapolap completion bash > $(brew --prefix)/etc/bash_completion.d/leapolap

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leapolap completion zsh > "${fpath[1]}/_leapolap"

Fish:
  $ leapolap completion fish | source

PowerShell:
  PS> leapolap completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
