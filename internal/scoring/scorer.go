package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/diligence-cli/internal/model"
)

// Scorer derives the deterministic 0-5 pillar score from the qualitative
// evaluation and the coverage result. Same inputs, same output: no clock, no
// model call.
//
// The base score comes from the traffic-light outcome (red 1.0, yellow 3.0,
// green 4.2, none met 2.5). Coverage then shifts it by up to ±0.8: full
// coverage earns the maximum bonus, 50% is neutral, and zero coverage takes
// the full penalty.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

const (
	baseRed     = 1.0
	baseYellow  = 3.0
	baseGreen   = 4.2
	baseNeutral = 2.5

	coverageSwing = 1.6 // slope of the coverage adjustment
	coverageBound = 0.8

	redBelow    = 2.0
	yellowBelow = 3.5

	insufficientCoverageBelow = 30
	insufficientCriticalAbove = 2
)

// Score computes the pillar score for one evaluation.
func (s *Scorer) Score(ev *model.PillarEvaluation, coverage model.CoverageResult) model.PillarScore {
	base := baseNeutral
	switch {
	case ev.Red.Met:
		base = baseRed
	case ev.Yellow.Met:
		base = baseYellow
	case ev.Green.Met:
		base = baseGreen
	}

	adj := clamp((float64(coverage.Percent)/100.0-0.5)*coverageSwing, -coverageBound, coverageBound)
	score := clamp(base+adj, 0, 5)

	health := model.HealthGreen
	switch {
	case score < redBelow:
		health = model.HealthRed
	case score < yellowBelow:
		health = model.HealthYellow
	}

	insufficient := coverage.Percent < insufficientCoverageBelow &&
		len(coverage.CriticalMissing) > insufficientCriticalAbove

	return model.PillarScore{
		ID:                  uuid.New().String(),
		CompanyID:           ev.CompanyID,
		TenantID:            ev.TenantID,
		ScoringRunID:        ev.ScoringRunID,
		Pillar:              ev.Pillar,
		Score:               score,
		HealthStatus:        health,
		DataCoveragePercent: coverage.Percent,
		Confidence:          ev.LLMConfidence * (0.5 + float64(coverage.Percent)/200.0),
		InsufficientData:    insufficient,
		CreatedAt:           time.Now().UTC(),
	}
}
