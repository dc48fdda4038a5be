package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/spf13/cobra"
)

// NewTuplesCommand creates the tuples command.
func NewTuplesCommand() *cobra.Command {
	var (
		flags memberFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "tuples <level>...",
		Short: "Cross join the members of several levels",
		Long: `Cross join the members of the given levels in one query. Each row is a
tuple with one member per level, in argument order. Only combinations
with fact rows are returned when non-empty evaluation is enabled.`,
		Example: `  leapolap tuples "[Store].[Store State]" "[Time].[Year]"
  leapolap tuples "[Gender].[Gender]" "[Time].[Quarter]" --limit 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tuples, err := cc.Engine.Tuples(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tuples))
			for _, tuple := range tuples {
				row := make([]string, len(tuple))
				for i, m := range tuple {
					row[i] = m.UniqueName()
				}
				rows = append(rows, row)
			}
			return cc.Renderer.Table(args, rows)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of tuples to read (0 for no limit)")
	return cmd
}

// NewPredicateCommand creates the predicate command.
func NewPredicateCommand() *cobra.Command {
	var flags memberFlags
	cmd := &cobra.Command{
		Use:   "predicate <tuple>...",
		Short: "Build the SQL predicate restricting a cell request to tuples",
		Long: `Build the compound predicate that restricts a cell request of the
current measure to a list of tuples. Each argument is one tuple: member
unique names separated by commas.

Tuples constraining the same columns are grouped. Tuples that no row can
satisfy are dropped. A calculated measure has no predicate.`,
		Example: `  leapolap predicate "[Store].[USA].[CA],[Time].[1997]" "[Store].[USA].[OR],[Time].[1998]"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tuples := make([][]string, 0, len(args))
			for _, arg := range args {
				tuple, err := splitTuple(arg)
				if err != nil {
					return err
				}
				tuples = append(tuples, tuple)
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := cc.Engine.CompoundPredicate(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), tuples)
			if err != nil {
				return err
			}

			sql := info.PredicateString()
			if info.Predicate() == nil {
				sql = ""
			}
			return cc.Renderer.Table(
				[]string{"Predicate", "Columns", "Groups", "Satisfiable", "Dropped"},
				[][]string{{
					sql,
					info.BitKey().String(),
					strconv.Itoa(len(info.Groups())),
					strconv.FormatBool(info.IsSatisfiable()),
					strconv.Itoa(info.UnsatisfiableCount()),
				}},
			)
		},
	}
	flags.register(cmd)
	return cmd
}

// splitTuple splits a comma separated list of unique names. Commas
// inside brackets belong to the name.
func splitTuple(s string) ([]string, error) {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced ']' in tuple %q", s)
			}
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '[' in tuple %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty member in tuple %q", s)
		}
	}
	return parts, nil
}

// tupleString joins a tuple for display.
func tupleString(tuple []core.Member) string {
	names := make([]string, len(tuple))
	for i, m := range tuple {
		names[i] = m.UniqueName()
	}
	return "(" + strings.Join(names, ", ") + ")"
}
