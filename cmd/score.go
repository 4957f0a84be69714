package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score <company-id>",
	Short: "Run the full scoring pipeline for a company",
	Long: `Runs the five-stage scoring pipeline against a company's stored evidence:

  1. Extract metrics from each pillar's evidence via Claude
  2. Aggregate evidence, resolved metrics, and data coverage per pillar
  3. Evaluate and score the eight business pillars
  4. Detect red/yellow/green flags
  5. Calculate the overall BDE score and acquisition recommendation

Examples:
  # Score a company
  score acme-corp

  # Score under a specific tenant
  score acme-corp --tenant sells-group`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().String("tenant", "", "tenant id (default from config)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	companyID := args[0]
	tenantID, _ := cmd.Flags().GetString("tenant")
	if tenantID == "" {
		tenantID = cfg.Scoring.TenantID
	}

	env, err := initPipeline(ctx, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	zap.L().Info("starting scoring run",
		zap.String("company_id", companyID),
		zap.String("tenant_id", tenantID),
	)

	result, err := env.orchestrator.Run(ctx, companyID, tenantID)
	if err != nil {
		return err
	}

	printRunResult(companyID, result)
	return nil
}

func printRunResult(companyID string, result *model.RunResult) {
	fmt.Printf("Company:  %s\n", companyID)
	fmt.Printf("Overall:  %d / 100 (%s)\n", result.BDE.OverallScore, result.BDE.Recommendation.Verdict)
	fmt.Printf("Valuation: %.2fx - %.2fx %s\n",
		result.BDE.Valuation.LowMultiple, result.BDE.Valuation.HighMultiple,
		strings.ToUpper(result.BDE.Valuation.Basis))
	fmt.Printf("Confidence: %.0f%%\n", result.BDE.Confidence*100)

	fmt.Println("\nPillars:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	scores := append([]model.PillarScore(nil), result.PillarScores...)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	for _, ps := range scores {
		note := ""
		if ps.InsufficientData {
			note = "insufficient data"
		}
		fmt.Fprintf(w, "  %s\t%.1f\t%s\t%d%% coverage\t%s\n",
			ps.Pillar.Label(), ps.Score, ps.HealthStatus, ps.DataCoveragePercent, note)
	}
	for _, p := range result.FailedPillars {
		fmt.Fprintf(w, "  %s\t-\tfailed\t\t\n", p.Label())
	}
	w.Flush()

	if len(result.Flags) > 0 {
		fmt.Println("\nFlags:")
		for _, f := range result.Flags {
			fmt.Printf("  [%s/%d] %s\n", f.Color, f.Severity, f.Title)
		}
	}

	fmt.Printf("\nRationale: %s\n", result.BDE.Recommendation.Rationale)
	fmt.Printf("Duration:  %.1fs\n", float64(result.DurationMS)/1000)
}
