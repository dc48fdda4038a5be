package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewWarmCommand creates the warm command.
func NewWarmCommand() *cobra.Command {
	var (
		cube     string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Load every level of a cube into the member cache",
		Long: `Load every level of every hierarchy of a cube, running several loads
at once. Mostly useful to measure load times against a new database.`,
		Example: `  leapolap warm --cube Sales --parallel 8`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := cc.request(cube, nil, "")
			start := time.Now()
			n, err := cc.Engine.Warm(cmd.Context(), req.Cube, parallel)
			if err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("Loaded %d members of %s in %s", n, req.Cube, time.Since(start).Round(time.Millisecond)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cube, "cube", "c", "", "Cube to warm (default: first cube of the schema)")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Number of level loads to run at once")
	return cmd
}
