package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var (
		sample bool
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load data into the target database",
		Long: `Load data into the target database and flush the member caches.

With --sample the demo FoodMart tables are created and filled, and the
matching schema file is written when none exists yet. With --dir every
CSV file of the directory is loaded into a table named after the file.`,
		Example: `  # Create the demo schema and data
  leapolap seed --sample

  # Load CSV files
  leapolap seed --dir ./seeds`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !sample && dir == "" {
				return errors.New("nothing to load: pass --sample or --dir")
			}
			if sample {
				written, err := writeSampleSchema(cmd)
				if err != nil {
					return err
				}
				if written != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote sample schema to %s\n", written)
				}
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if sample {
				if err := cc.Engine.SeedSample(cmd.Context()); err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Loaded sample data (%d statements)", len(schema.SampleData)))
			}
			if dir != "" {
				n, err := cc.Engine.LoadSeeds(cmd.Context(), dir)
				if err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Loaded %d seed files from %s", n, dir))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "Create the demo schema and data")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of CSV files to load")
	return cmd
}

// writeSampleSchema saves the sample definition to the configured schema
// path unless a file is already there. It returns the path written.
func writeSampleSchema(cmd *cobra.Command) (string, error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cc.Cfg.SchemaPath); err == nil {
		cc.Logger.Debug("schema file exists, not overwriting", "path", cc.Cfg.SchemaPath)
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := schema.Save(cc.Cfg.SchemaPath, schema.Sample()); err != nil {
		return "", fmt.Errorf("failed to write sample schema: %w", err)
	}
	return cc.Cfg.SchemaPath, nil
}
