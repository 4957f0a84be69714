package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func floatPtr(f float64) *float64 { return &f }

func testMetric(companyID, runID, name string, confidence int, current bool) model.Metric {
	return model.Metric{
		ID:           uuid.New().String(),
		CompanyID:    companyID,
		TenantID:     "tenant-1",
		ScoringRunID: runID,
		Name:         name,
		Value: model.MetricValue{
			Kind:    model.ValueScalar,
			Numeric: floatPtr(2.4),
		},
		Unit:          "USD_M",
		PrimaryPillar: model.PillarFinancialHealth,
		Confidence:    confidence,
		SourceType:    model.SourceDocument,
		IsCurrent:     current,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "acme", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusProcessing, got.Status)
	assert.Equal(t, "acme", got.CompanyID)

	result := &model.RunResult{
		BDE:        model.BDEScore{OverallScore: 62},
		DurationMS: 1500,
	}
	require.NoError(t, s.CompleteRun(ctx, run.ID, result))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 62, got.Result.BDE.OverallScore)
}

func TestSQLite_FailRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "acme", "tenant-1")
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "stage 1 exhausted retries"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "stage 1 exhausted retries", got.ErrorMessage)
}

func TestSQLite_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), uuid.New().String())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "run", nf.Entity)
}

func TestSQLite_ListRunsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, "acme", "tenant-1")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "globex", "tenant-1")
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusProcessing))

	runs, err := s.ListRuns(ctx, RunFilter{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r1.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, RunFilter{Status: model.RunStatusQueued})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "globex", runs[0].CompanyID)
}

func TestSQLite_EvidenceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunk := model.EvidenceChunk{
		CompanyID:  "acme",
		TenantID:   "tenant-1",
		Pillar:     model.PillarFinancialHealth,
		SourceType: model.SourceDocument,
		SourceName: "2024-financials.pdf",
		Text:       "ARR grew from $2.1M to $2.4M",
		Confidence: 0.85,
	}
	require.NoError(t, s.InsertEvidence(ctx, chunk))

	chunks, err := s.ListEvidence(ctx, "acme", model.PillarFinancialHealth)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "2024-financials.pdf", chunks[0].SourceName)
	assert.Equal(t, 0.85, chunks[0].Confidence)
	assert.NotEmpty(t, chunks[0].ID)

	other, err := s.ListEvidence(ctx, "acme", model.PillarCustomerHealth)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLite_MetricVersionChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	old := testMetric("acme", runID, "arr", 70, true)
	require.NoError(t, s.InsertMetric(ctx, old))

	newer := testMetric("acme", runID, "arr", 90, true)
	newer.SourceType = model.SourceConnector
	require.NoError(t, s.InsertMetric(ctx, newer))
	require.NoError(t, s.SupersedeMetric(ctx, old.ID, newer.ID))

	current, err := s.CurrentMetricsByName(ctx, "acme", runID, "arr")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, newer.ID, current[0].ID)
	assert.Equal(t, model.SourceConnector, current[0].SourceType)

	versions, err := s.MetricVersions(ctx, "acme", runID, "arr")
	require.NoError(t, err)
	require.Len(t, versions, 2, "superseded rows must remain")
	assert.False(t, versions[0].IsCurrent)
	assert.Equal(t, newer.ID, versions[0].SupersededBy)
}

func TestSQLite_MarkMetricNeedsReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	m := testMetric("acme", runID, "gross_margin", 60, true)
	require.NoError(t, s.InsertMetric(ctx, m))
	require.NoError(t, s.MarkMetricNeedsReview(ctx, m.ID))

	current, err := s.CurrentMetricsByName(ctx, "acme", runID, "gross_margin")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.True(t, current[0].NeedsAnalystReview)
}

func TestSQLite_MetricValueVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	m := testMetric("acme", runID, "revenue_by_year", 80, true)
	m.Value = model.MetricValue{
		Kind:   model.ValueTimeSeries,
		Series: map[string]float64{"2023": 2.1, "2024": 2.4},
	}
	require.NoError(t, s.InsertMetric(ctx, m))

	got, err := s.CurrentMetricsByName(ctx, "acme", runID, "revenue_by_year")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ValueTimeSeries, got[0].Value.Kind)
	assert.Equal(t, 2.4, got[0].Value.Series["2024"])
}

func TestSQLite_EvaluationVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := model.PillarEvaluation{
		ID:           uuid.New().String(),
		CompanyID:    "acme",
		TenantID:     "tenant-1",
		ScoringRunID: uuid.New().String(),
		Pillar:       model.PillarFinancialHealth,
		KeyFindings:  []string{"strong recurring revenue"},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.InsertEvaluation(ctx, first))

	second := first
	second.ID = uuid.New().String()
	second.ScoringRunID = uuid.New().String()
	second.KeyFindings = []string{"margin compression in 2024"}
	second.CreatedAt = time.Now().UTC().Add(time.Second)
	require.NoError(t, s.InsertEvaluation(ctx, second))

	got, err := s.CurrentEvaluation(ctx, "acme", model.PillarFinancialHealth)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, []string{"margin compression in 2024"}, got.KeyFindings)
}

func TestSQLite_UpsertPillarScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	ps := model.PillarScore{
		ID:                  uuid.New().String(),
		CompanyID:           "acme",
		TenantID:            "tenant-1",
		ScoringRunID:        runID,
		Pillar:              model.PillarFinancialHealth,
		Score:               3.8,
		HealthStatus:        model.HealthGreen,
		DataCoveragePercent: 70,
		Confidence:          0.72,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, s.UpsertPillarScore(ctx, ps))

	ps.Score = 2.9
	ps.HealthStatus = model.HealthYellow
	require.NoError(t, s.UpsertPillarScore(ctx, ps))

	scores, err := s.ListPillarScores(ctx, "acme", runID)
	require.NoError(t, err)
	require.Len(t, scores, 1, "same pillar in same run must replace, not duplicate")
	assert.Equal(t, 2.9, scores[0].Score)
	assert.Equal(t, model.HealthYellow, scores[0].HealthStatus)
}

func TestSQLite_FlagDismissal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	f := model.Flag{
		ID:           uuid.New().String(),
		CompanyID:    "acme",
		TenantID:     "tenant-1",
		ScoringRunID: runID,
		Color:        model.FlagRed,
		Category:     model.FlagCategoryPillarHealth,
		Pillar:       model.PillarCustomerHealth,
		Severity:     4,
		Title:        "Top customer is 40% of revenue",
		EvidenceRefs: []string{uuid.New().String()},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.InsertFlag(ctx, f))

	flags, err := s.ListActiveFlags(ctx, "acme", runID)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagRed, flags[0].Color)
	assert.Len(t, flags[0].EvidenceRefs, 1)

	require.NoError(t, s.DismissFlag(ctx, f.ID, "analyst@sells.group"))

	flags, err = s.ListActiveFlags(ctx, "acme", runID)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestSQLite_BDEScoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	runID := uuid.New().String()

	sc := model.BDEScore{
		ID:           uuid.New().String(),
		CompanyID:    "acme",
		TenantID:     "tenant-1",
		ScoringRunID: runID,
		OverallScore: 68,
		WeightedRaw:  3.4,
		Valuation:    model.ValuationRange{LowMultiple: 3.9, HighMultiple: 4.6, Basis: "arr"},
		Confidence:   0.64,
		Recommendation: model.Recommendation{
			Verdict:   model.VerdictAcquire,
			Rationale: "strong fundamentals with concentration risk",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertBDEScore(ctx, sc))

	got, err := s.GetBDEScore(ctx, "acme", runID)
	require.NoError(t, err)
	assert.Equal(t, 68, got.OverallScore)
	assert.Equal(t, model.VerdictAcquire, got.Recommendation.Verdict)
	assert.Equal(t, 4.6, got.Valuation.HighMultiple)

	_, err = s.GetBDEScore(ctx, "acme", uuid.New().String())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
