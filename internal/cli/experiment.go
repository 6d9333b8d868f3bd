package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/util"
	"github.com/emiliopalmerini/splitlab/internal/web"
)

func newExperimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage experiments",
		Long:  `Create, list, start, stop and analyze experiments.`,
	}
	cmd.AddCommand(
		newExperimentCreateCmd(),
		newExperimentListCmd(),
		newExperimentShowCmd(),
		newExperimentStartCmd(),
		newExperimentStopCmd(),
		newExperimentResultsCmd(),
		newExperimentAssignmentsCmd(),
	)
	return cmd
}

func newExperimentCreateCmd() *cobra.Command {
	var (
		variants  string
		secondary []string
		cfg       domain.ExperimentConfig
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a draft experiment",
		Long: `Create a draft experiment. Weights are integers that must sum to 100.

Examples:
  splitlab experiment create checkout-cta --scope shorts:finance \
    --variants control=50,variantA=50 --metric conversion`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseVariants(variants)
			if err != nil {
				return err
			}
			cfg.Name = args[0]
			cfg.Variants = parsed
			cfg.SecondaryMetrics = secondary

			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := app.Engine.CreateExperiment(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created experiment %s (%s)\n", exp.Name, exp.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&variants, "variants", "control=50,variantA=50", "Variants as name=weight pairs")
	f.StringVar(&cfg.ScopeKey, "scope", "", "Scope key, e.g. shorts:finance")
	f.StringVar(&cfg.PrimaryMetric, "metric", "", "Primary metric event type")
	f.StringSliceVar(&secondary, "secondary", nil, "Secondary metric event types")
	f.StringVar(&cfg.ControlVariant, "control", "", "Control variant (default \"control\")")
	f.StringVar(&cfg.FallbackVariant, "fallback", "", "Variant served while not running (default: control)")
	f.StringVarP(&cfg.Description, "description", "d", "", "Description of the experiment")
	f.StringVarP(&cfg.Hypothesis, "hypothesis", "H", "", "Hypothesis to test")
	f.IntVar(&cfg.PlannedDurationDays, "duration", 0, "Planned duration in days (default from SPLITLAB_DEFAULT_DURATION_DAYS)")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}

func newExperimentListCmd() *cobra.Command {
	var status, scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.ExperimentFilter{ScopeKey: scope}
			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}

			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				experiments, err := app.Engine.ListExperiments(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(experiments) == 0 {
					fmt.Fprintln(out, "No experiments found")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSCOPE\tSTATUS\tVARIANTS\tMETRIC\tSTARTED")
				for _, e := range experiments {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.Name, e.ScopeKey, e.Status, formatVariants(e.Variants),
						e.PrimaryMetric, util.FormatDateTime(e.ActualStartDate))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft, running, stopped, completed)")
	cmd.Flags().StringVar(&scope, "scope", "", "Filter by scope key")
	return cmd
}

func newExperimentShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(cmd.Context(), app.Engine, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), web.NewExperimentResponse(exp))
				}
				printExperiment(cmd.OutOrStdout(), exp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newExperimentStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id|name>",
		Short: "Start a draft experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(cmd.Context(), app.Engine, args[0])
				if err != nil {
					return err
				}
				if exp, err = app.Engine.StartExperiment(cmd.Context(), exp.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started experiment %s at %s\n", exp.Name, util.FormatDateTime(exp.ActualStartDate))
				return nil
			})
		},
	}
}

func newExperimentStopCmd() *cobra.Command {
	var (
		reason   string
		complete bool
	)
	cmd := &cobra.Command{
		Use:   "stop <id|name>",
		Short: "Stop a running experiment",
		Long: `Stop a running experiment. With --complete the experiment is marked as
having run its course instead of being halted early.

Examples:
  splitlab experiment stop checkout-cta --reason "guardrail breach"
  splitlab experiment stop checkout-cta --complete --reason "reached 4 weeks"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(cmd.Context(), app.Engine, args[0])
				if err != nil {
					return err
				}
				if complete {
					exp, err = app.Engine.CompleteExperiment(cmd.Context(), exp.ID, reason)
				} else {
					exp, err = app.Engine.StopExperiment(cmd.Context(), exp.ID, reason)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s is now %s\n", exp.Name, exp.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the experiment ends (required)")
	cmd.Flags().BoolVar(&complete, "complete", false, "Mark as completed rather than stopped")
	return cmd
}

func newExperimentResultsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "results <id|name>",
		Short: "Analyze an experiment",
		Long:  `Aggregate events, test each variant against control and print a recommendation.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(cmd.Context(), app.Engine, args[0])
				if err != nil {
					return err
				}
				results, err := app.Engine.GetResults(cmd.Context(), exp.ID)
				if err != nil {
					return err
				}
				resp := web.NewResultsResponse(results)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				return printResults(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newExperimentAssignmentsCmd() *cobra.Command {
	var (
		after string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "assignments <id|name>",
		Short: "List persisted assignments ordered by entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				exp, err := resolveExperiment(cmd.Context(), app.Engine, args[0])
				if err != nil {
					return err
				}
				assignments, err := app.Engine.ListAssignments(cmd.Context(), exp.ID, after, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ENTITY\tVARIANT\tHASH\tASSIGNED")
				for _, a := range assignments {
					at := a.AssignedAt
					fmt.Fprintf(w, "%s\t%s\t%.6f\t%s\n", a.EntityID, a.Variant, a.HashValue, util.FormatDateTime(&at))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "Only entities sorting after this ID")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of rows")
	return cmd
}

func printExperiment(out io.Writer, e *domain.Experiment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", e.ID)
	fmt.Fprintf(w, "Name:\t%s\n", e.Name)
	fmt.Fprintf(w, "Status:\t%s\n", e.Status)
	fmt.Fprintf(w, "Scope:\t%s\n", e.ScopeKey)
	fmt.Fprintf(w, "Variants:\t%s\n", formatVariants(e.Variants))
	fmt.Fprintf(w, "Control:\t%s\n", e.ControlVariant)
	fmt.Fprintf(w, "Fallback:\t%s\n", e.Fallback())
	fmt.Fprintf(w, "Primary metric:\t%s\n", e.PrimaryMetric)
	if len(e.SecondaryMetrics) > 0 {
		fmt.Fprintf(w, "Secondary metrics:\t%s\n", strings.Join(e.SecondaryMetrics, ", "))
	}
	fmt.Fprintf(w, "Planned days:\t%d\n", e.PlannedDurationDays)
	if d := deref(e.Description); d != "" {
		fmt.Fprintf(w, "Description:\t%s\n", d)
	}
	if h := deref(e.Hypothesis); h != "" {
		fmt.Fprintf(w, "Hypothesis:\t%s\n", h)
	}
	fmt.Fprintf(w, "Created:\t%s\n", util.FormatDateTime(&e.CreatedAt))
	fmt.Fprintf(w, "Started:\t%s\n", util.FormatDateTime(e.ActualStartDate))
	fmt.Fprintf(w, "Ended:\t%s\n", util.FormatDateTime(e.ActualEndDate))
	if r := deref(e.StopReason); r != "" {
		fmt.Fprintf(w, "Stop reason:\t%s\n", r)
	}
	_ = w.Flush()
}

func printResults(out io.Writer, r web.ResultsResponse) error {
	fmt.Fprintf(out, "Experiment: %s (%s)\n", r.Experiment.Name, r.Experiment.Status)
	fmt.Fprintf(out, "Primary metric: %s\n\n", r.PrimaryMetric)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tUSERS\tCONVERSIONS\tRATE\tEFFECT\tP-VALUE\tSIGNIFICANT")
	tests := make(map[string]web.SignificanceResponse, len(r.Significance))
	for _, s := range r.Significance {
		tests[s.Variant] = s
	}
	for _, v := range r.Variants {
		effect, pvalue, significant := "-", "-", ""
		if s, ok := tests[v.Variant]; ok && s.Computable {
			effect = util.FormatSignedPercent(s.Effect)
			pvalue = util.FormatPValue(s.PValue)
			if s.Significant {
				significant = "yes"
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			v.Variant, v.TotalUsers, v.Conversions, util.FormatPercent(v.ConversionRate),
			effect, pvalue, significant)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nEvents scanned: %d", r.EventsScanned)
	if r.UnattributedConversions > 0 {
		fmt.Fprintf(out, " (%d unattributed conversions)", r.UnattributedConversions)
	}
	fmt.Fprintf(out, "\nRecommendation: %s (confidence: %s)\n", r.Recommendation.Action, r.Recommendation.Confidence)
	for _, reason := range r.Recommendation.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
	return nil
}
