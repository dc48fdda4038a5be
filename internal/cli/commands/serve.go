package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapolap/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve member requests over HTTP",
		Long: `Start an HTTP server over one engine. It serves:
- JSON member, tuple and predicate requests under /api/cubes/{cube}
- cache flush and invalidation under /api/flush and /api/invalidate
- a server-sent event stream of cache changes at /api/events
- Prometheus metrics at /metrics

While serving, the change log is polled and, with --watch-schema, the
schema file is reloaded when it changes.`,
		Example: `  leapolap serve --addr :8080
  curl 'localhost:8080/api/cubes/Sales/members?level=%5BStore%5D.%5BStore%20State%5D'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(server.Config{
				Engine:   cc.Engine,
				Addr:     addr,
				NonEmpty: cc.Cfg.Native.NonEmpty,
				Logger:   cc.Logger,
			})

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s on %s\n", cc.Engine.Schema().Name, addr)
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	return cmd
}
