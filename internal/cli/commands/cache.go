package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewFlushCommand creates the flush command.
func NewFlushCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "flush [hierarchy]",
		Short: "Invalidate the member caches of a hierarchy",
		Long: `Record a flush in the change log. Every process serving the schema
drops its cached members of the hierarchy, or of all hierarchies when
none is given, on its next poll.`,
		Example: `  leapolap flush "[Store]" --reason "store table reloaded"
  leapolap flush`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			hierarchy := ""
			if len(args) == 1 {
				hierarchy = args[0]
			}
			if err := cc.Engine.Flush(cmd.Context(), hierarchy, reason); err != nil {
				return err
			}
			if hierarchy == "" {
				hierarchy = "all hierarchies"
			}
			cc.Renderer.Success("Flushed " + hierarchy)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the change log")
	return cmd
}

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "invalidate <member>",
		Short: "Remove a member and its descendants from the member caches",
		Long: `Record in the change log that a member is gone. Processes that have the
member cached remove it with its cached descendants; the others flush
the hierarchy.`,
		Example: `  leapolap invalidate "[Store].[Mexico]" --reason "closed"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Engine.Invalidate(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			cc.Renderer.Success("Invalidated " + args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the change log")
	return cmd
}

// NewChangesCommand creates the changes command.
func NewChangesCommand() *cobra.Command {
	var (
		since int64
		limit int
		prune time.Duration
	)
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show or prune the change log",
		Example: `  leapolap changes --since 120
  leapolap changes --prune 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if prune > 0 {
				n, err := cc.Engine.PruneChanges(cmd.Context(), prune)
				if err != nil {
					return err
				}
				cc.Renderer.Success(fmt.Sprintf("Pruned %d events older than %s", n, prune))
				return nil
			}

			events, err := cc.Engine.Changes(cmd.Context(), since, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{
					strconv.FormatInt(ev.Seq, 10),
					string(ev.Kind),
					ev.Hierarchy,
					ev.Member,
					ev.Reason,
					ev.CreatedAt.Format(time.RFC3339),
				})
			}
			return cc.Renderer.Table([]string{"Seq", "Kind", "Hierarchy", "Member", "Reason", "Created"}, rows)
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "Show events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events (0 for all)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete events older than this age instead of listing")
	return cmd
}
