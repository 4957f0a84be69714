package scoring

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/diligence-cli/internal/model"
)

// FlagDetector runs the deterministic cross-pillar flag rules over the
// scored pillars and their evaluations. Rules never dismiss flags; dismissal
// is an analyst action on the store.
type FlagDetector struct{}

func NewFlagDetector() *FlagDetector { return &FlagDetector{} }

// yellowBreadthThreshold is how many yellow pillars raise the breadth flag.
const yellowBreadthThreshold = 3

// Detect evaluates all flag rules. evaluations is keyed by pillar and may be
// missing entries for failed pillars.
func (d *FlagDetector) Detect(companyID, tenantID, runID string, scores []model.PillarScore, evaluations map[model.Pillar]*model.PillarEvaluation) []model.Flag {
	var flags []model.Flag
	now := time.Now().UTC()

	newFlag := func(color model.FlagColor, category model.FlagCategory, pillar model.Pillar, severity int, title, detail string) model.Flag {
		return model.Flag{
			ID:           uuid.New().String(),
			CompanyID:    companyID,
			TenantID:     tenantID,
			ScoringRunID: runID,
			Color:        color,
			Category:     category,
			Pillar:       pillar,
			Severity:     severity,
			Title:        title,
			Detail:       detail,
			CreatedAt:    now,
		}
	}

	yellowCount := 0
	allGreen := len(scores) > 0

	for _, ps := range scores {
		switch ps.HealthStatus {
		case model.HealthRed:
			allGreen = false
			severity := 4
			if ps.Score < 1.0 {
				severity = 5
			}
			f := newFlag(model.FlagRed, model.FlagCategoryPillarHealth, ps.Pillar, severity,
				fmt.Sprintf("%s is red", ps.Pillar.Label()),
				fmt.Sprintf("Pillar scored %.1f of 5.0", ps.Score))
			if ev := evaluations[ps.Pillar]; ev != nil {
				f.EvidenceRefs = ev.Red.Evidence
				if len(ev.Risks) > 0 {
					f.Detail = ev.Risks[0]
				}
			}
			flags = append(flags, f)

		case model.HealthYellow:
			allGreen = false
			yellowCount++
		}

		if ps.InsufficientData {
			allGreen = false
			flags = append(flags, newFlag(model.FlagYellow, model.FlagCategoryDataQuality, ps.Pillar, 2,
				fmt.Sprintf("Insufficient data for %s", ps.Pillar.Label()),
				fmt.Sprintf("Coverage %d%% with critical data points missing", ps.DataCoveragePercent)))
		}
	}

	if yellowCount >= yellowBreadthThreshold {
		flags = append(flags, newFlag(model.FlagYellow, model.FlagCategoryBreadth, "", 3,
			"Broad moderate weakness",
			fmt.Sprintf("%d pillars scored yellow; risk is spread rather than isolated", yellowCount)))
	}

	if allGreen {
		flags = append(flags, newFlag(model.FlagGreen, model.FlagCategoryOverall, "", 1,
			"All pillars green", "Every scored pillar is healthy"))
	}

	return flags
}
