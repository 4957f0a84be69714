package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/resolve"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Inspect and amend company metrics",
	Long:  "Commands for listing current metrics, inspecting version chains, and recording manual analyst entries.",
}

// -- metrics list --

var metricsListCmd = &cobra.Command{
	Use:   "list <company-id> <run-id>",
	Short: "List current metrics for a scoring run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		metrics, err := st.CurrentMetrics(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "metrics list")
		}
		if len(metrics) == 0 {
			fmt.Fprintln(os.Stderr, "No current metrics.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tVALUE\tUNIT\tSOURCE\tCONF\tFLAGS")
		for _, m := range metrics {
			flags := ""
			if m.Corroborated {
				flags += "corroborated "
			}
			if m.NeedsAnalystReview {
				flags += "needs-review"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				m.Name, m.Value.Display(), m.Unit, m.SourceType, m.Confidence, flags)
		}
		return w.Flush()
	},
}

// -- metrics history --

var metricsHistoryCmd = &cobra.Command{
	Use:   "history <company-id> <run-id> <metric-name>",
	Short: "Show the full version chain of a metric",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		versions, err := st.MetricVersions(ctx, args[0], args[1], args[2])
		if err != nil {
			return eris.Wrap(err, "metrics history")
		}
		if len(versions) == 0 {
			fmt.Fprintln(os.Stderr, "No versions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tVALUE\tSOURCE\tCONF\tAS_OF\tSTATE")
		for _, m := range versions {
			state := "superseded"
			if m.IsCurrent {
				state = "current"
			}
			if m.NeedsAnalystReview {
				state += " (review)"
			}
			asOf := ""
			if m.AsOfDate != nil {
				asOf = m.AsOfDate.Format("2006-01-02")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				truncateID(m.ID), m.Value.Display(), m.SourceType, m.Confidence, asOf, state)
		}
		return w.Flush()
	},
}

// -- metrics set --

var metricsSetCmd = &cobra.Command{
	Use:   "set <company-id> <run-id> <metric-name> <value>",
	Short: "Record a manual metric entry",
	Long: `Records an analyst-entered metric value. Manual entries carry the highest
source priority and supersede connector and document values for the same
metric.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		companyID, runID, name, rawValue := args[0], args[1], args[2], args[3]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		def := registry.Default().ByName(name)
		if def == nil {
			return eris.Errorf("unknown metric %q", name)
		}

		value, err := parseManualValue(def.Type, rawValue)
		if err != nil {
			return err
		}

		obs := model.MetricObservation{
			Name:       name,
			Value:      value,
			Unit:       def.Unit,
			Pillar:     def.Pillar,
			Confidence: 1.0,
			SourceType: model.SourceManual,
		}
		if asOf, _ := cmd.Flags().GetString("as-of"); asOf != "" {
			d, err := time.Parse("2006-01-02", asOf)
			if err != nil {
				return eris.Wrap(err, "parse --as-of")
			}
			obs.AsOfDate = &d
		}

		m, err := resolve.NewResolver(st).Record(ctx, companyID, cfg.Scoring.TenantID, runID, obs)
		if err != nil {
			return eris.Wrap(err, "metrics set")
		}

		fmt.Printf("Recorded %s = %s (id %s)\n", name, m.Value.Display(), truncateID(m.ID))
		return nil
	},
}

func parseManualValue(kind model.ValueKind, raw string) (model.MetricValue, error) {
	switch kind {
	case model.ValueScalar:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.MetricValue{}, eris.Wrapf(err, "metric expects a number, got %q", raw)
		}
		return model.MetricValue{Kind: model.ValueScalar, Numeric: &n}, nil
	case model.ValueText:
		return model.MetricValue{Kind: model.ValueText, Text: raw}, nil
	case model.ValueBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return model.MetricValue{}, eris.Wrapf(err, "metric expects true/false, got %q", raw)
		}
		n := 0.0
		text := "No"
		if b {
			n = 1.0
			text = "Yes"
		}
		return model.MetricValue{Kind: model.ValueBoolean, Numeric: &n, Text: text}, nil
	default:
		return model.MetricValue{}, eris.Errorf("manual entry is not supported for %s metrics", kind)
	}
}

func init() {
	metricsSetCmd.Flags().String("as-of", "", "as-of date for the value (YYYY-MM-DD)")

	metricsCmd.AddCommand(metricsListCmd)
	metricsCmd.AddCommand(metricsHistoryCmd)
	metricsCmd.AddCommand(metricsSetCmd)
	rootCmd.AddCommand(metricsCmd)
}
