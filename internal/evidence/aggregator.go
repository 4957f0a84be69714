package evidence

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/registry"
	"github.com/sells-group/diligence-cli/internal/store"
)

// SelectionConfig bounds the evidence set handed to the LLM stages.
type SelectionConfig struct {
	// HighConfidence is the document-chunk confidence above which a chunk is
	// always selected.
	HighConfidence float64
	// LowConfidence is the floor below which document chunks are always
	// discarded.
	LowConfidence float64
	// MinChunks is the target size; mid-band document chunks are admitted
	// only while the selection is below it.
	MinChunks int
}

// DefaultSelection mirrors the production thresholds.
func DefaultSelection() SelectionConfig {
	return SelectionConfig{HighConfidence: 0.7, LowConfidence: 0.4, MinChunks: 30}
}

// Aggregator assembles the per-pillar input for evaluation: selected evidence
// chunks, current resolved metrics, and the deterministic coverage result.
type Aggregator struct {
	store     store.Store
	registry  *registry.MetricRegistry
	checklist registry.Checklist
	sel       SelectionConfig
}

// NewAggregator builds an Aggregator. checklist may be nil; coverage then
// falls back to the registry's metric list per pillar.
func NewAggregator(st store.Store, reg *registry.MetricRegistry, cl registry.Checklist, sel SelectionConfig) *Aggregator {
	if cl == nil {
		cl = registry.Checklist{}
	}
	return &Aggregator{store: st, registry: reg, checklist: cl, sel: sel}
}

// Aggregate selects evidence and computes coverage for one pillar. Connector
// chunks are always kept. Document chunks above the high-confidence threshold
// are always kept; mid-band chunks fill the set only up to MinChunks, in
// descending confidence order so the selection is deterministic.
func (a *Aggregator) Aggregate(ctx context.Context, companyID, runID string, pillar model.Pillar) (*model.PillarData, error) {
	chunks, err := a.store.ListEvidence(ctx, companyID, pillar)
	if err != nil {
		return nil, err
	}

	general, err := a.store.ListEvidence(ctx, companyID, model.PillarGeneral)
	if err != nil {
		return nil, err
	}
	chunks = append(chunks, general...)

	selected, meta := a.selectChunks(chunks)

	metrics, err := a.store.CurrentMetrics(ctx, companyID, runID)
	if err != nil {
		return nil, err
	}
	metrics = filterMetricsForPillar(metrics, pillar)

	coverage := a.Coverage(pillar, metrics, selected)

	zap.L().Debug("aggregated pillar data",
		zap.String("company_id", companyID),
		zap.String("pillar", string(pillar)),
		zap.Int("evidence_chunks", len(selected)),
		zap.Int("filtered_out", meta.FilteredOut),
		zap.Int("metrics", len(metrics)),
		zap.Int("coverage_percent", coverage.Percent),
	)

	return &model.PillarData{
		CompanyID: companyID,
		Pillar:    pillar,
		Evidence:  selected,
		Metrics:   metrics,
		Coverage:  coverage,
		Meta:      meta,
	}, nil
}

func (a *Aggregator) selectChunks(chunks []model.EvidenceChunk) ([]model.EvidenceChunk, model.AggregateMeta) {
	var selected []model.EvidenceChunk
	var midBand []model.EvidenceChunk
	var meta model.AggregateMeta

	for _, c := range chunks {
		switch {
		case c.SourceType != model.SourceDocument:
			selected = append(selected, c)
			meta.ConnectorChunks++
		case c.Confidence > a.sel.HighConfidence:
			selected = append(selected, c)
			meta.DocumentChunks++
		case c.Confidence >= a.sel.LowConfidence:
			midBand = append(midBand, c)
		default:
			meta.FilteredOut++
		}
	}

	// Highest confidence first; id breaks ties so two runs over the same
	// rows always pick the same chunks.
	sort.SliceStable(midBand, func(i, j int) bool {
		if midBand[i].Confidence != midBand[j].Confidence {
			return midBand[i].Confidence > midBand[j].Confidence
		}
		return midBand[i].ID < midBand[j].ID
	})

	for _, c := range midBand {
		if len(selected) >= a.sel.MinChunks {
			meta.FilteredOut++
			continue
		}
		selected = append(selected, c)
		meta.DocumentChunks++
	}

	return selected, meta
}

func filterMetricsForPillar(metrics []model.Metric, pillar model.Pillar) []model.Metric {
	var out []model.Metric
	for _, m := range metrics {
		if m.PrimaryPillar == pillar {
			out = append(out, m)
			continue
		}
		for _, p := range m.PillarsUsedBy {
			if p == pillar {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
