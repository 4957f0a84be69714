package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a scoring run to an XLSX workbook",
	Long: `Writes a completed run's BDE score, pillar scores, current metrics, and
flags to a multi-sheet XLSX workbook for analyst review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if run.Status != model.RunStatusCompleted {
			return eris.Errorf("run %s is %s; only completed runs can be exported", truncateID(runID), run.Status)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("diligence-%s-%s.xlsx", run.CompanyID, truncateID(runID))
		}

		if err := writeWorkbook(cmd, st, run, out); err != nil {
			return err
		}

		fmt.Printf("Exported run %s to %s\n", truncateID(runID), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output file path (default diligence-<company>-<run>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

func writeWorkbook(cmd *cobra.Command, st store.Store, run *model.ScoringRun, path string) error {
	ctx := cmd.Context()

	bde, err := st.GetBDEScore(ctx, run.CompanyID, run.ID)
	if err != nil {
		return eris.Wrap(err, "export: load bde score")
	}
	scores, err := st.ListPillarScores(ctx, run.CompanyID, run.ID)
	if err != nil {
		return eris.Wrap(err, "export: load pillar scores")
	}
	metrics, err := st.CurrentMetrics(ctx, run.CompanyID, run.ID)
	if err != nil {
		return eris.Wrap(err, "export: load metrics")
	}
	flags, err := st.ListActiveFlags(ctx, run.CompanyID, run.ID)
	if err != nil {
		return eris.Wrap(err, "export: load flags")
	}

	f := xlsx.NewFile()

	if err := addSummarySheet(f, run, bde); err != nil {
		return err
	}
	if err := addPillarSheet(f, scores); err != nil {
		return err
	}
	if err := addMetricSheet(f, metrics); err != nil {
		return err
	}
	if err := addFlagSheet(f, flags); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addSummarySheet(f *xlsx.File, run *model.ScoringRun, bde *model.BDEScore) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	kv := func(key, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetString(value)
	}

	kv("Company", run.CompanyID)
	kv("Run ID", run.ID)
	kv("Run date", run.CreatedAt.Format("2006-01-02 15:04"))
	kv("Overall score", fmt.Sprintf("%d / 100", bde.OverallScore))
	kv("Verdict", string(bde.Recommendation.Verdict))
	kv("Valuation", fmt.Sprintf("%.2fx - %.2fx %s",
		bde.Valuation.LowMultiple, bde.Valuation.HighMultiple, bde.Valuation.Basis))
	kv("Confidence", fmt.Sprintf("%.0f%%", bde.Confidence*100))
	kv("Rationale", bde.Recommendation.Rationale)
	kv("Value drivers", strings.Join(bde.Recommendation.ValueDrivers, "; "))
	kv("Risks", strings.Join(bde.Recommendation.Risks, "; "))
	for _, item := range bde.Recommendation.ActionPlan {
		kv(fmt.Sprintf("Action %d", item.Priority), item.Action)
	}
	return nil
}

func addPillarSheet(f *xlsx.File, scores []model.PillarScore) error {
	sheet, err := f.AddSheet("Pillars")
	if err != nil {
		return eris.Wrap(err, "export: add pillar sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Pillar", "Score", "Health", "Coverage %", "Confidence", "Insufficient Data"} {
		header.AddCell().SetString(h)
	}

	for _, ps := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(ps.Pillar.Label())
		row.AddCell().SetFloatWithFormat(ps.Score, "0.0")
		row.AddCell().SetString(string(ps.HealthStatus))
		row.AddCell().SetInt(ps.DataCoveragePercent)
		row.AddCell().SetFloatWithFormat(ps.Confidence, "0.00")
		row.AddCell().SetBool(ps.InsufficientData)
	}
	return nil
}

func addMetricSheet(f *xlsx.File, metrics []model.Metric) error {
	sheet, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "export: add metric sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Name", "Value", "Unit", "Pillar", "Source", "Confidence", "As Of", "Corroborated", "Needs Review"} {
		header.AddCell().SetString(h)
	}

	for _, m := range metrics {
		row := sheet.AddRow()
		row.AddCell().SetString(m.Name)
		row.AddCell().SetString(m.Value.Display())
		row.AddCell().SetString(m.Unit)
		row.AddCell().SetString(m.PrimaryPillar.Label())
		row.AddCell().SetString(string(m.SourceType))
		row.AddCell().SetInt(m.Confidence)
		asOf := ""
		if m.AsOfDate != nil {
			asOf = m.AsOfDate.Format("2006-01-02")
		}
		row.AddCell().SetString(asOf)
		row.AddCell().SetBool(m.Corroborated)
		row.AddCell().SetBool(m.NeedsAnalystReview)
	}
	return nil
}

func addFlagSheet(f *xlsx.File, flags []model.Flag) error {
	sheet, err := f.AddSheet("Flags")
	if err != nil {
		return eris.Wrap(err, "export: add flag sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Color", "Severity", "Category", "Pillar", "Title", "Detail"} {
		header.AddCell().SetString(h)
	}

	for _, fl := range flags {
		row := sheet.AddRow()
		row.AddCell().SetString(string(fl.Color))
		row.AddCell().SetInt(fl.Severity)
		row.AddCell().SetString(string(fl.Category))
		pillar := ""
		if fl.Pillar != "" {
			pillar = fl.Pillar.Label()
		}
		row.AddCell().SetString(pillar)
		row.AddCell().SetString(fl.Title)
		row.AddCell().SetString(fl.Detail)
	}
	return nil
}
