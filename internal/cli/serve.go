package cli

import (
	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/web"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and dashboard",
		Long: `Start the HTTP server exposing the JSON API under /api and the
experiment dashboard under /experiments.

Examples:
  splitlab serve              # Listen on SPLITLAB_ADDR (default :8080)
  splitlab serve --addr :3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(app *App) error {
				cfg := app.Config.Server
				if addr != "" {
					cfg.Addr = addr
				}
				return web.NewServer(app.Engine, app.Logger, cfg).Start(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides SPLITLAB_ADDR)")
	return cmd
}
