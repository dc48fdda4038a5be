package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and schema",
		Long: `Check the configuration and build the schema without touching the
database, then list the cubes the schema defines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			if err := cc.Cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			s, err := schema.Load(cc.Cfg.SchemaPath)
			if err != nil {
				return err
			}

			cc.Renderer.Header("Schema " + s.Name)
			rows := make([][]string, 0, len(s.Cubes))
			for _, c := range s.Cubes {
				kind := "base"
				if c.IsVirtual() {
					kind = "virtual"
				}
				rows = append(rows, []string{
					c.Name(),
					kind,
					strconv.Itoa(len(c.Hierarchies())),
					strconv.Itoa(len(c.Measures())),
					strconv.Itoa(len(c.AggStars())),
				})
			}
			if err := cc.Renderer.Table([]string{"Cube", "Kind", "Hierarchies", "Measures", "Aggregates"}, rows); err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("%s is valid: %d cubes, %d hierarchies", cc.Cfg.SchemaPath, len(s.Cubes), len(s.Hierarchies())))
			return nil
		},
	}
}
