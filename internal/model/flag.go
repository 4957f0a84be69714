package model

import "time"

// FlagColor is the signal level of a detected flag.
type FlagColor string

const (
	FlagRed    FlagColor = "red"
	FlagYellow FlagColor = "yellow"
	FlagGreen  FlagColor = "green"
)

// FlagCategory groups flags by the rule family that raised them.
type FlagCategory string

const (
	FlagCategoryPillarHealth FlagCategory = "pillar_health"
	FlagCategoryDataQuality  FlagCategory = "data_quality"
	FlagCategoryBreadth      FlagCategory = "breadth"
	FlagCategoryOverall      FlagCategory = "overall"
)

// Flag is an independent red/yellow/green signal raised during flag
// detection. Flags are dismissed by analysts, never automatically.
type Flag struct {
	ID           string       `json:"id"`
	CompanyID    string       `json:"company_id"`
	TenantID     string       `json:"tenant_id"`
	ScoringRunID string       `json:"scoring_run_id"`
	Color        FlagColor    `json:"color"`
	Category     FlagCategory `json:"category"`
	Pillar       Pillar       `json:"pillar,omitempty"` // empty for cross-pillar flags
	Severity     int          `json:"severity"`         // 1-5
	Title        string       `json:"title"`
	Detail       string       `json:"detail,omitempty"`
	EvidenceRefs []string     `json:"evidence_refs,omitempty"`
	Dismissed    bool         `json:"dismissed"`
	DismissedBy  string       `json:"dismissed_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
