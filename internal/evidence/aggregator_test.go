package evidence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/store"
)

// fakeStore serves canned evidence and metrics; unused Store methods panic
// via the embedded nil interface.
type fakeStore struct {
	store.Store
	evidence map[model.Pillar][]model.EvidenceChunk
	metrics  []model.Metric
}

func (f *fakeStore) ListEvidence(_ context.Context, _ string, pillar model.Pillar) ([]model.EvidenceChunk, error) {
	return f.evidence[pillar], nil
}

func (f *fakeStore) CurrentMetrics(_ context.Context, _, _ string) ([]model.Metric, error) {
	return f.metrics, nil
}

func docChunk(id string, conf float64) model.EvidenceChunk {
	return model.EvidenceChunk{ID: id, SourceType: model.SourceDocument, Confidence: conf, Text: "filler"}
}

func newAggregator(fs *fakeStore, cl registry.Checklist) *Aggregator {
	return NewAggregator(fs, registry.Default(), cl, DefaultSelection())
}

func TestAggregate_ConnectorChunksAlwaysSelected(t *testing.T) {
	fs := &fakeStore{evidence: map[model.Pillar][]model.EvidenceChunk{
		model.PillarFinancialHealth: {
			{ID: "c1", SourceType: model.SourceConnector, Confidence: 0.1, Text: "crm export"},
			docChunk("d1", 0.2),
		},
	}}

	data, err := newAggregator(fs, nil).Aggregate(context.Background(), "acme", "run-1", model.PillarFinancialHealth)
	require.NoError(t, err)

	require.Len(t, data.Evidence, 1)
	assert.Equal(t, "c1", data.Evidence[0].ID)
	assert.Equal(t, 1, data.Meta.ConnectorChunks)
	assert.Equal(t, 1, data.Meta.FilteredOut)
}

func TestAggregate_MidBandFillsOnlyBelowMinimum(t *testing.T) {
	var chunks []model.EvidenceChunk
	for i := 0; i < 28; i++ {
		chunks = append(chunks, docChunk(fmt.Sprintf("hi-%02d", i), 0.9))
	}
	// Five mid-band chunks compete for the two remaining slots.
	for i := 0; i < 5; i++ {
		chunks = append(chunks, docChunk(fmt.Sprintf("mid-%02d", i), 0.5+float64(i)*0.02))
	}

	fs := &fakeStore{evidence: map[model.Pillar][]model.EvidenceChunk{
		model.PillarFinancialHealth: chunks,
	}}

	data, err := newAggregator(fs, nil).Aggregate(context.Background(), "acme", "run-1", model.PillarFinancialHealth)
	require.NoError(t, err)

	assert.Len(t, data.Evidence, 30)
	assert.Equal(t, 3, data.Meta.FilteredOut)

	// The two highest-confidence mid-band chunks won the slots.
	ids := make(map[string]bool)
	for _, c := range data.Evidence {
		ids[c.ID] = true
	}
	assert.True(t, ids["mid-04"])
	assert.True(t, ids["mid-03"])
	assert.False(t, ids["mid-00"])
}

func TestAggregate_SelectionIsDeterministic(t *testing.T) {
	// Equal confidence everywhere; id order must decide.
	var chunks []model.EvidenceChunk
	for i := 0; i < 40; i++ {
		chunks = append(chunks, docChunk(fmt.Sprintf("chunk-%02d", i), 0.5))
	}
	fs := &fakeStore{evidence: map[model.Pillar][]model.EvidenceChunk{
		model.PillarGTMEngine: chunks,
	}}
	agg := newAggregator(fs, nil)

	first, err := agg.Aggregate(context.Background(), "acme", "run-1", model.PillarGTMEngine)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), "acme", "run-1", model.PillarGTMEngine)
	require.NoError(t, err)

	require.Len(t, first.Evidence, 30)
	for i := range first.Evidence {
		assert.Equal(t, first.Evidence[i].ID, second.Evidence[i].ID)
	}
	assert.Equal(t, "chunk-00", first.Evidence[0].ID)
}

func TestAggregate_IncludesGeneralPillarEvidence(t *testing.T) {
	fs := &fakeStore{evidence: map[model.Pillar][]model.EvidenceChunk{
		model.PillarFinancialHealth: {docChunk("fin", 0.9)},
		model.PillarGeneral:         {docChunk("gen", 0.9)},
	}}

	data, err := newAggregator(fs, nil).Aggregate(context.Background(), "acme", "run-1", model.PillarFinancialHealth)
	require.NoError(t, err)
	assert.Len(t, data.Evidence, 2)
}

func TestAggregate_MetricsFilteredByPillar(t *testing.T) {
	fs := &fakeStore{
		evidence: map[model.Pillar][]model.EvidenceChunk{},
		metrics: []model.Metric{
			{Name: "arr", PrimaryPillar: model.PillarFinancialHealth},
			{Name: "nps", PrimaryPillar: model.PillarCustomerHealth},
			{Name: "gross_margin", PrimaryPillar: model.PillarFinancialHealth,
				PillarsUsedBy: []model.Pillar{model.PillarServiceSoftwareRatio}},
		},
	}
	agg := newAggregator(fs, nil)

	data, err := agg.Aggregate(context.Background(), "acme", "run-1", model.PillarFinancialHealth)
	require.NoError(t, err)
	assert.Len(t, data.Metrics, 2)

	data, err = agg.Aggregate(context.Background(), "acme", "run-1", model.PillarServiceSoftwareRatio)
	require.NoError(t, err)
	require.Len(t, data.Metrics, 1)
	assert.Equal(t, "gross_margin", data.Metrics[0].Name)
}

func tenPointChecklist() registry.Checklist {
	items := make([]registry.ChecklistItem, 0, 10)
	for i, name := range []string{
		"arr", "revenue_growth_rate", "gross_margin", "net_revenue_retention",
		"gross_churn_rate", "ebitda_margin", "cash_burn", "deferred_revenue",
		"rule_of_40", "revenue_concentration_pct",
	} {
		items = append(items, registry.ChecklistItem{
			RequiredDataPoint: name,
			IsCritical:        i < 4,
			Priority:          i + 1,
		})
	}
	return registry.Checklist{model.PillarFinancialHealth: items}
}

func TestCoverage_MetricAndTextMatches(t *testing.T) {
	// Six points present as metrics, one more via evidence text: 7/10 = 70%.
	metrics := []model.Metric{
		{Name: "arr", PrimaryPillar: model.PillarFinancialHealth},
		{Name: "revenue_growth_rate", PrimaryPillar: model.PillarFinancialHealth},
		{Name: "gross_margin", PrimaryPillar: model.PillarFinancialHealth},
		{Name: "net_revenue_retention", PrimaryPillar: model.PillarFinancialHealth},
		{Name: "gross_churn_rate", PrimaryPillar: model.PillarFinancialHealth},
		{Name: "ebitda_margin", PrimaryPillar: model.PillarFinancialHealth},
	}
	chunks := []model.EvidenceChunk{
		{Text: "The company's Cash Burn was roughly $40k per month in FY24."},
	}

	agg := newAggregator(&fakeStore{}, tenPointChecklist())
	cov := agg.Coverage(model.PillarFinancialHealth, metrics, chunks)

	assert.Equal(t, 70, cov.Percent)
	assert.Equal(t, 10, cov.RequiredCount)
	assert.Len(t, cov.PresentPoints, 7)
	assert.Contains(t, cov.PresentPoints, "cash_burn")
	assert.Len(t, cov.MissingPoints, 3)
	assert.Empty(t, cov.CriticalMissing)
}

func TestCoverage_PctVariantMatchesPercentSign(t *testing.T) {
	chunks := []model.EvidenceChunk{
		{Text: "Revenue concentration % sits at 38 for the top three accounts."},
	}

	agg := newAggregator(&fakeStore{}, tenPointChecklist())
	cov := agg.Coverage(model.PillarFinancialHealth, nil, chunks)

	assert.Contains(t, cov.PresentPoints, "revenue_concentration_pct")
}

func TestCoverage_CriticalMissingTracked(t *testing.T) {
	agg := newAggregator(&fakeStore{}, tenPointChecklist())
	cov := agg.Coverage(model.PillarFinancialHealth, nil, nil)

	assert.Equal(t, 0, cov.Percent)
	assert.Len(t, cov.MissingPoints, 10)
	assert.Len(t, cov.CriticalMissing, 4)
}

func TestCoverage_PercentFloors(t *testing.T) {
	// 1 of 3 present: 33, not 34.
	cl := registry.Checklist{model.PillarGTMEngine: {
		{RequiredDataPoint: "pipeline_value", Priority: 1},
		{RequiredDataPoint: "win_rate", Priority: 2},
		{RequiredDataPoint: "cac", Priority: 3},
	}}
	agg := newAggregator(&fakeStore{}, cl)

	cov := agg.Coverage(model.PillarGTMEngine,
		[]model.Metric{{Name: "win_rate", PrimaryPillar: model.PillarGTMEngine}}, nil)

	assert.Equal(t, 33, cov.Percent)
}

func TestCoverage_FallbackChecklistHasNoCriticals(t *testing.T) {
	agg := newAggregator(&fakeStore{}, nil)
	cov := agg.Coverage(model.PillarFinancialHealth, nil, nil)

	assert.NotZero(t, cov.RequiredCount)
	assert.Empty(t, cov.CriticalMissing, "fallback checklist carries no critical flags")
}
