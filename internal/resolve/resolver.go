package resolve

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
	"github.com/sells-group/diligence-cli/internal/store"
)

// confidenceMargin is the clear-win threshold: when priority and date cannot
// decide, the newcomer only displaces the incumbent if its confidence exceeds
// the incumbent's by more than this.
const confidenceMargin = 0.1

// Resolver persists metric observations through the conflict-resolution
// rules. Chains are append-only: losing versions are marked superseded,
// never deleted.
type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// outcome of comparing a new observation against a current metric.
type outcome int

const (
	newWins outcome = iota
	oldWins
	unresolved
)

// Record inserts an observation as a metric, resolving any conflict with
// current metrics of the same name. Resolution order: source priority, then
// strictly later as_of_date, then a clear confidence win; anything still
// tied leaves both rows current and flagged for analyst review.
func (r *Resolver) Record(ctx context.Context, companyID, tenantID, runID string, obs model.MetricObservation) (*model.Metric, error) {
	m := metricFromObservation(companyID, tenantID, runID, obs)

	existing, err := r.store.CurrentMetricsByName(ctx, companyID, runID, m.Name)
	if err != nil {
		return nil, err
	}

	var losers []model.Metric
	var ties []model.Metric
	for _, old := range existing {
		switch compare(m, old) {
		case newWins:
			losers = append(losers, old)
		case oldWins:
			m.IsCurrent = false
			m.SupersededBy = old.ID
		case unresolved:
			ties = append(ties, old)
		}
	}

	if len(ties) > 0 && m.IsCurrent {
		m.NeedsAnalystReview = true
	}

	if err := r.store.InsertMetric(ctx, *m); err != nil {
		return nil, err
	}

	for _, old := range losers {
		if err := r.store.SupersedeMetric(ctx, old.ID, m.ID); err != nil {
			return nil, err
		}
		zap.L().Debug("metric superseded",
			zap.String("name", m.Name),
			zap.String("old_source", string(old.SourceType)),
			zap.String("new_source", string(m.SourceType)),
		)
	}

	if m.NeedsAnalystReview {
		for _, old := range ties {
			if old.NeedsAnalystReview {
				continue
			}
			if err := r.store.MarkMetricNeedsReview(ctx, old.ID); err != nil {
				return nil, err
			}
		}
		zap.L().Info("conflicting metric versions left for analyst review",
			zap.String("company_id", companyID),
			zap.String("name", m.Name),
			zap.Int("conflicts", len(ties)),
		)
	}

	return m, nil
}

// Current returns the current version(s) of a named metric. More than one
// row means an unresolved conflict awaiting analyst review.
func (r *Resolver) Current(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return r.store.CurrentMetricsByName(ctx, companyID, runID, name)
}

// Versions returns the full append-only chain for a named metric.
func (r *Resolver) Versions(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return r.store.MetricVersions(ctx, companyID, runID, name)
}

func compare(newM *model.Metric, old model.Metric) outcome {
	newPrio, oldPrio := newM.SourceType.Priority(), old.SourceType.Priority()
	if newPrio != oldPrio {
		if newPrio > oldPrio {
			return newWins
		}
		return oldWins
	}

	if newM.AsOfDate != nil && old.AsOfDate != nil {
		if newM.AsOfDate.After(*old.AsOfDate) {
			return newWins
		}
		if old.AsOfDate.After(*newM.AsOfDate) {
			return oldWins
		}
	}

	// No date tiebreak: only a clear confidence win displaces the incumbent.
	// Anything closer goes to analyst review rather than silently picking a
	// side.
	if float64(newM.Confidence-old.Confidence)/100.0 > confidenceMargin {
		return newWins
	}
	return unresolved
}

func metricFromObservation(companyID, tenantID, runID string, obs model.MetricObservation) *model.Metric {
	return &model.Metric{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		TenantID:       tenantID,
		ScoringRunID:   runID,
		Name:           obs.Name,
		Value:          obs.Value,
		Unit:           obs.Unit,
		Period:         obs.Period,
		AsOfDate:       obs.AsOfDate,
		PrimaryPillar:  obs.Pillar,
		SourceChunkIDs: obs.ChunkIDs,
		Confidence:     int(math.Round(obs.Confidence * 100)),
		SourceType:     obs.SourceType,
		Corroborated:   obs.Corroborated,
		IsCurrent:      true,
		CreatedAt:      time.Now().UTC(),
	}
}
