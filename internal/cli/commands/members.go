package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/spf13/cobra"
)

// memberFlags are shared by every command that evaluates members in a
// cube.
type memberFlags struct {
	cube    string
	context []string
	measure string
}

func (f *memberFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cube, "cube", "c", "", "Cube to evaluate in (default: first cube of the schema)")
	cmd.Flags().StringSliceVar(&f.context, "context", nil, "Context member unique names restricting native loads")
	cmd.Flags().StringVarP(&f.measure, "measure", "m", "", "Current measure (default: first measure of the cube)")
}

var memberHeader = []string{"Unique Name", "Name", "Level", "Key", "Ordinal"}

func memberRow(m core.Member) []string {
	level := ""
	if m.Level() != nil {
		level = m.Level().Name()
	}
	return []string{m.UniqueName(), m.Name(), level, fmt.Sprint(m.Key()), strconv.Itoa(m.Ordinal())}
}

func renderMembers(cc *CommandContext, members []core.Member) error {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, memberRow(m))
	}
	return cc.Renderer.Table(memberHeader, rows)
}

// NewMembersCommand creates the members command.
func NewMembersCommand() *cobra.Command {
	var (
		flags memberFlags
		count bool
	)
	cmd := &cobra.Command{
		Use:   "members <level>",
		Short: "List the members of a level",
		Long: `List the members of a level, read through the member cache.

The level is given by unique name. With --context the load is restricted
to members that have fact rows for the context members.`,
		Example: `  leapolap members "[Store].[Store State]"
  leapolap members "[Store].[Store City]" --context "[Time].[1997]" --cube Sales
  leapolap members "[Gender].[Gender]" --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := cc.request(flags.cube, flags.context, flags.measure)
			if count {
				n, err := cc.Engine.LevelMemberCount(cmd.Context(), req, args[0])
				if err != nil {
					return err
				}
				return cc.Renderer.Table([]string{"Level", "Members"}, [][]string{{args[0], strconv.FormatInt(n, 10)}})
			}
			members, err := cc.Engine.LevelMembers(cmd.Context(), req, args[0])
			if err != nil {
				return err
			}
			return renderMembers(cc, members)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&count, "count", false, "Print the member count instead of the members")
	return cmd
}

// NewChildrenCommand creates the children command.
func NewChildrenCommand() *cobra.Command {
	var flags memberFlags
	cmd := &cobra.Command{
		Use:     "children <member>",
		Short:   "List the children of a member",
		Example: `  leapolap children "[Store].[USA]"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			members, err := cc.Engine.Children(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args[0])
			if err != nil {
				return err
			}
			return renderMembers(cc, members)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand() *cobra.Command {
	var (
		flags memberFlags
		must  bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <member>",
		Short: "Resolve a member by unique name",
		Long: `Resolve a member by unique name, loading each ancestor's children on
the way down. A missing member prints nothing unless --must is set.`,
		Example: `  leapolap lookup "[Store].[USA].[CA].[San Francisco]"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := cc.Engine.Lookup(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args[0], must)
			if err != nil {
				return err
			}
			if m == nil {
				return renderMembers(cc, nil)
			}
			return renderMembers(cc, []core.Member{m})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&must, "must", false, "Fail when the member does not exist")
	return cmd
}

// NewLeadCommand creates the lead command.
func NewLeadCommand() *cobra.Command {
	var flags memberFlags
	cmd := &cobra.Command{
		Use:   "lead <member> <n>",
		Short: "Find the member n positions away on the same level",
		Long: `Find the member n positions after the given member on its level, or
before it when n is negative. Prints nothing when the position is off
either end of the level.`,
		Example: `  leapolap lead "[Time].[1997].[Q1].[January]" 2
  leapolap lead "[Time].[1998]" -- -1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid offset %q: %w", args[1], err)
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := cc.Engine.Lead(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args[0], n)
			if err != nil {
				return err
			}
			if m == nil {
				return renderMembers(cc, nil)
			}
			return renderMembers(cc, []core.Member{m})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewRangeCommand creates the range command.
func NewRangeCommand() *cobra.Command {
	var flags memberFlags
	cmd := &cobra.Command{
		Use:     "range <start> <end>",
		Short:   "List the members between two members of one level",
		Example: `  leapolap range "[Time].[1997].[Q1].[January]" "[Time].[1997].[Q2].[April]"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			members, err := cc.Engine.Range(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args[0], args[1])
			if err != nil {
				return err
			}
			return renderMembers(cc, members)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewCompareCommand creates the compare command.
func NewCompareCommand() *cobra.Command {
	var (
		flags         memberFlags
		siblingsEqual bool
	)
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare the hierarchical order of two members",
		Long: `Compare two members of one hierarchy in hierarchical order and print
-1, 0 or 1. With --siblings-equal members sharing a parent compare equal.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := cc.Engine.Compare(cmd.Context(), cc.request(flags.cube, flags.context, flags.measure), args[0], args[1], siblingsEqual)
			if err != nil {
				return err
			}
			return cc.Renderer.Table([]string{"A", "B", "Order"}, [][]string{{args[0], args[1], strconv.Itoa(c)}})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&siblingsEqual, "siblings-equal", false, "Treat members with the same parent as equal")
	return cmd
}
