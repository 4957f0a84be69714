package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/diligence-cli/internal/model"
)

// pillarWeights is the fixed weighting of the eight scoring pillars in the
// overall BDE score. Weights are renormalized over the pillars that actually
// produced scores, so a failed pillar shrinks the denominator instead of
// dragging the score to zero.
var pillarWeights = map[model.Pillar]float64{
	model.PillarFinancialHealth:      0.20,
	model.PillarGTMEngine:            0.15,
	model.PillarCustomerHealth:       0.15,
	model.PillarProductTechnical:     0.125,
	model.PillarOperationalMaturity:  0.10,
	model.PillarLeadershipTransition: 0.10,
	model.PillarEcosystemDependency:  0.075,
	model.PillarServiceSoftwareRatio: 0.10,
}

// Valuation heuristic: a baseline multiple of 4.0, shifted 0.35 per point of
// weighted raw score around the 2.5 midpoint, with a fixed ±0.35 band.
const (
	valuationBase     = 4.0
	valuationPerPoint = 0.35
	valuationMidpoint = 2.5
	valuationBand     = 0.35
)

// Calculator produces the overall BDE score, verdict, and valuation range
// from the pillar scores and active flags. Deterministic.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Calculate computes the terminal BDE score for a run.
func (c *Calculator) Calculate(companyID, tenantID, runID string, scores []model.PillarScore, flags []model.Flag) model.BDEScore {
	var weightedSum, weightTotal float64
	for _, ps := range scores {
		w, ok := pillarWeights[ps.Pillar]
		if !ok {
			continue
		}
		weightedSum += w * ps.Score
		weightTotal += w
	}

	var raw float64
	if weightTotal > 0 {
		raw = weightedSum / weightTotal
	}
	overall := int(math.Round(raw / 5.0 * 100.0))

	verdict := verdictFor(overall)
	if capped := applyRedFlagCap(verdict, flags); capped != verdict {
		verdict = capped
	}

	center := valuationBase + (raw-valuationMidpoint)*valuationPerPoint
	valuation := model.ValuationRange{
		LowMultiple:  roundMultiple(center - valuationBand),
		HighMultiple: roundMultiple(center + valuationBand),
		Basis:        "arr",
	}

	return model.BDEScore{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		TenantID:       tenantID,
		ScoringRunID:   runID,
		OverallScore:   overall,
		WeightedRaw:    raw,
		Valuation:      valuation,
		Confidence:     aggregateConfidence(scores),
		Recommendation: buildRecommendation(verdict, scores, flags),
		CreatedAt:      time.Now().UTC(),
	}
}

func verdictFor(overall int) model.Verdict {
	switch {
	case overall >= 75:
		return model.VerdictStrongAcquire
	case overall >= 60:
		return model.VerdictAcquire
	case overall >= 45:
		return model.VerdictConditional
	case overall >= 30:
		return model.VerdictHold
	default:
		return model.VerdictPass
	}
}

// applyRedFlagCap demotes acquire verdicts to conditional while any active
// red flag stands.
func applyRedFlagCap(v model.Verdict, flags []model.Flag) model.Verdict {
	for _, f := range flags {
		if f.Color == model.FlagRed && !f.Dismissed {
			if v == model.VerdictStrongAcquire || v == model.VerdictAcquire {
				return model.VerdictConditional
			}
			return v
		}
	}
	return v
}

// aggregateConfidence is the coverage-weighted mean of the per-pillar
// confidences. Pillars with richer data pull the aggregate harder.
func aggregateConfidence(scores []model.PillarScore) float64 {
	var sum, weights float64
	for _, ps := range scores {
		w := float64(ps.DataCoveragePercent) / 100.0
		if w <= 0 {
			w = 0.05
		}
		sum += ps.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func buildRecommendation(verdict model.Verdict, scores []model.PillarScore, flags []model.Flag) model.Recommendation {
	rec := model.Recommendation{Verdict: verdict}

	sorted := make([]model.PillarScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	for _, ps := range sorted {
		switch ps.HealthStatus {
		case model.HealthGreen:
			rec.ValueDrivers = append(rec.ValueDrivers,
				fmt.Sprintf("%s (%.1f/5.0)", ps.Pillar.Label(), ps.Score))
		case model.HealthRed:
			rec.Risks = append(rec.Risks,
				fmt.Sprintf("%s is red (%.1f/5.0)", ps.Pillar.Label(), ps.Score))
		}
	}

	priority := 1
	for _, f := range flags {
		if f.Dismissed || f.Color == model.FlagGreen {
			continue
		}
		rec.ActionPlan = append(rec.ActionPlan, model.ActionItem{
			Priority: priority,
			Pillar:   f.Pillar,
			Action:   "Resolve: " + f.Title,
		})
		priority++
		if f.Color == model.FlagRed {
			rec.ValuationAdjustments = append(rec.ValuationAdjustments,
				"Discount warranted: "+f.Title)
		}
	}

	rec.Rationale = rationaleFor(verdict, len(rec.Risks), len(rec.ValueDrivers))
	return rec
}

func rationaleFor(verdict model.Verdict, riskCount, driverCount int) string {
	switch verdict {
	case model.VerdictStrongAcquire:
		return fmt.Sprintf("Strong profile: %d pillars driving value, no disqualifying risks", driverCount)
	case model.VerdictAcquire:
		return fmt.Sprintf("Solid profile: %d value drivers against %d material risks", driverCount, riskCount)
	case model.VerdictConditional:
		return fmt.Sprintf("Workable with conditions: %d risks require resolution before close", riskCount)
	case model.VerdictHold:
		return "Fundamentals below acquisition bar; revisit after operational improvement"
	default:
		return "Profile does not support an acquisition at this time"
	}
}

func roundMultiple(f float64) float64 {
	return math.Round(f*100) / 100
}
