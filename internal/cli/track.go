package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/engine"
)

func newTrackCmd() *cobra.Command {
	var (
		props []string
		at    string
	)
	cmd := &cobra.Command{
		Use:   "track <experiment> <entity> <event-type>",
		Short: "Record an event for an entity",
		Long: `Record an event for an entity. Repeating an event with the same
timestamp is a no-op.

Examples:
  splitlab track checkout-cta user-42 conversion --at 2026-03-02T10:00:00Z
  splitlab track checkout-cta user-42 add_to_cart --prop sku=123`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			var ts time.Time
			if at != "" {
				if ts, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}

			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(ctx, app.Engine, args[0])
				if err != nil {
					return err
				}
				ack, err := app.Engine.TrackEvent(ctx, engine.TrackEventInput{
					ExperimentID: exp.ID,
					EntityID:     args[1],
					EventType:    args[2],
					Properties:   properties,
					Timestamp:    ts,
				})
				if err != nil {
					return err
				}
				if ack.Duplicate {
					fmt.Fprintln(cmd.OutOrStdout(), "Duplicate event ignored")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s at %s\n", args[2], args[1], ack.Timestamp.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Event property as key=value (repeatable)")
	cmd.Flags().StringVar(&at, "at", "", "Event time in RFC3339 (default: now)")
	return cmd
}
