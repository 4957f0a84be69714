package model

import "time"

// CriterionAssessment is the LLM's judgement for one traffic-light criterion,
// with the evidence statements backing it.
type CriterionAssessment struct {
	Met      bool     `json:"met"`
	Strength string   `json:"strength,omitempty"` // weak | moderate | strong
	Evidence []string `json:"evidence,omitempty"`
}

// PillarEvaluation is the qualitative LLM assessment for one
// (company, pillar, scoring run). Versioned the same way as Metric: one
// current row per (company, pillar) at a time.
type PillarEvaluation struct {
	ID            string              `json:"id"`
	CompanyID     string              `json:"company_id"`
	TenantID      string              `json:"tenant_id"`
	ScoringRunID  string              `json:"scoring_run_id"`
	Pillar        Pillar              `json:"pillar"`
	Green         CriterionAssessment `json:"meets_green_criteria"`
	Yellow        CriterionAssessment `json:"meets_yellow_criteria"`
	Red           CriterionAssessment `json:"fails_red_criteria"`
	KeyFindings   []string            `json:"key_findings,omitempty"`
	Risks         []string            `json:"risks,omitempty"`
	DataGaps      []string            `json:"data_gaps,omitempty"`
	LLMConfidence float64             `json:"llm_confidence"`
	IsCurrent     bool                `json:"is_current"`
	CreatedAt     time.Time           `json:"created_at"`
}

// HealthStatus is the traffic-light status derived from a pillar score.
type HealthStatus string

const (
	HealthRed    HealthStatus = "red"
	HealthYellow HealthStatus = "yellow"
	HealthGreen  HealthStatus = "green"
)

// PillarScore is the deterministic scoring output for one
// (company, pillar, scoring run).
type PillarScore struct {
	ID                  string       `json:"id"`
	CompanyID           string       `json:"company_id"`
	TenantID            string       `json:"tenant_id"`
	ScoringRunID        string       `json:"scoring_run_id"`
	Pillar              Pillar       `json:"pillar"`
	Score               float64      `json:"score"` // 0.0-5.0
	HealthStatus        HealthStatus `json:"health_status"`
	DataCoveragePercent int          `json:"data_coverage_percent"`
	Confidence          float64      `json:"confidence"`
	InsufficientData    bool         `json:"insufficient_data_flag"`
	CreatedAt           time.Time    `json:"created_at"`
}
