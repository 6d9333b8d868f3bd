package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <experiment> <entity>...",
		Short: "Get the variant for one or more entities",
		Long: `Get the variant for one or more entities, assigning them on first sight.
While the experiment is not running the fallback variant is printed and
nothing is stored.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(ctx, app.Engine, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ENTITY\tVARIANT\tNOTE")
				for _, entity := range args[1:] {
					res, err := app.Engine.GetAssignment(ctx, exp.ID, entity)
					if err != nil {
						return err
					}
					note := ""
					switch {
					case res.IsFallback:
						note = "fallback"
					case res.Created:
						note = "new"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", entity, res.Variant, note)
				}
				return w.Flush()
			})
		},
	}
}
