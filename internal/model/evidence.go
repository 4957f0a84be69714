package model

import "time"

// EvidenceChunk is a unit of evidence text produced by the (external)
// ingestion layer. Document chunks carry the extraction confidence assigned
// at chunking time; connector chunks are pre-computed and treated as
// authoritative by the aggregator.
type EvidenceChunk struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	TenantID   string     `json:"tenant_id"`
	Pillar     Pillar     `json:"pillar"`
	SourceType SourceType `json:"source_type"`
	SourceName string     `json:"source_name,omitempty"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CoverageResult is the deterministic data-coverage computation for one
// (company, pillar). It is derived on every pipeline run, never persisted as
// its own entity.
type CoverageResult struct {
	Pillar          Pillar   `json:"pillar"`
	Percent         int      `json:"percent"`
	RequiredCount   int      `json:"required_count"`
	PresentPoints   []string `json:"present_points"`
	MissingPoints   []string `json:"missing_points"`
	CriticalMissing []string `json:"critical_missing"`
}

// PillarData is the aggregated input for one pillar's evaluation: the
// selected evidence, the current resolved metrics, and the coverage result.
type PillarData struct {
	CompanyID string          `json:"company_id"`
	Pillar    Pillar          `json:"pillar"`
	Evidence  []EvidenceChunk `json:"evidence"`
	Metrics   []Metric        `json:"metrics"`
	Coverage  CoverageResult  `json:"coverage"`
	Meta      AggregateMeta   `json:"meta"`
}

// AggregateMeta records how the evidence set was selected.
type AggregateMeta struct {
	DocumentChunks  int `json:"document_chunks"`
	ConnectorChunks int `json:"connector_chunks"`
	FilteredOut     int `json:"filtered_out"`
}
