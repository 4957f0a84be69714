package model

import "time"

// Verdict is the acquisition recommendation category.
type Verdict string

const (
	VerdictStrongAcquire Verdict = "strong_acquire"
	VerdictAcquire       Verdict = "acquire"
	VerdictConditional   Verdict = "conditional"
	VerdictHold          Verdict = "hold"
	VerdictPass          Verdict = "pass"
)

// ValuationRange is the low/high valuation multiple band produced by the
// BDE calculator.
type ValuationRange struct {
	LowMultiple  float64 `json:"low_multiple"`
	HighMultiple float64 `json:"high_multiple"`
	Basis        string  `json:"basis"` // e.g. "arr"
}

// ActionItem is a prioritized step in the recommendation's action plan.
type ActionItem struct {
	Priority int    `json:"priority"` // 1 = highest
	Pillar   Pillar `json:"pillar,omitempty"`
	Action   string `json:"action"`
}

// Recommendation is the structured acquisition recommendation attached to a
// BDE score.
type Recommendation struct {
	Verdict              Verdict      `json:"verdict"`
	Rationale            string       `json:"rationale"`
	ValueDrivers         []string     `json:"value_drivers,omitempty"`
	Risks                []string     `json:"risks,omitempty"`
	ActionPlan           []ActionItem `json:"action_plan,omitempty"`
	ValuationAdjustments []string     `json:"valuation_adjustments,omitempty"`
}

// BDEScore is the terminal artifact of a scoring run: one current row per
// (company, scoring run).
type BDEScore struct {
	ID             string         `json:"id"`
	CompanyID      string         `json:"company_id"`
	TenantID       string         `json:"tenant_id"`
	ScoringRunID   string         `json:"scoring_run_id"`
	OverallScore   int            `json:"overall_score"` // 0-100
	WeightedRaw    float64        `json:"weighted_raw"`  // 0.0-5.0
	Valuation      ValuationRange `json:"valuation"`
	Confidence     float64        `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	CreatedAt      time.Time      `json:"created_at"`
}
