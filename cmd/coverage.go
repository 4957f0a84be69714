package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/diligence-cli/internal/evidence"
	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/registry"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <company-id> <run-id>",
	Short: "Show data coverage per pillar",
	Long: `Computes the deterministic data-coverage result for each scoring pillar
from stored evidence and current metrics. No LLM calls are made; the same
inputs always produce the same percentages.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		companyID, runID := args[0], args[1]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var checklist registry.Checklist
		if cfg.Scoring.ChecklistPath != "" {
			checklist, err = registry.LoadChecklistFromFile(cfg.Scoring.ChecklistPath)
			if err != nil {
				return err
			}
		}

		agg := evidence.NewAggregator(st, registry.Default(), checklist, evidence.SelectionConfig{
			HighConfidence: cfg.Evidence.HighConfidence,
			LowConfidence:  cfg.Evidence.LowConfidence,
			MinChunks:      cfg.Evidence.MinChunks,
		})

		verbose, _ := cmd.Flags().GetBool("verbose")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PILLAR\tCOVERAGE\tPRESENT\tMISSING\tCRITICAL MISSING")
		for _, pillar := range model.ScoringPillars() {
			data, err := agg.Aggregate(ctx, companyID, runID, pillar)
			if err != nil {
				return eris.Wrapf(err, "coverage: aggregate %s", pillar)
			}
			cov := data.Coverage
			_, _ = fmt.Fprintf(w, "%s\t%d%%\t%d/%d\t%d\t%d\n",
				pillar.Label(), cov.Percent,
				len(cov.PresentPoints), cov.RequiredCount,
				len(cov.MissingPoints), len(cov.CriticalMissing))

			if verbose && len(cov.MissingPoints) > 0 {
				_, _ = fmt.Fprintf(w, "\tmissing: %s\t\t\t\n", strings.Join(cov.MissingPoints, ", "))
			}
		}
		return w.Flush()
	},
}

func init() {
	coverageCmd.Flags().Bool("verbose", false, "list the missing data points per pillar")
	rootCmd.AddCommand(coverageCmd)
}
