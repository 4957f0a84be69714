package model

import (
	"fmt"
	"time"
)

// SourceType identifies where a metric observation came from. The order of
// the Priority values is the conflict-resolution total order: manual entries
// always beat connector data, which always beats document extraction.
type SourceType string

const (
	SourceDocument  SourceType = "document"
	SourceConnector SourceType = "connector"
	SourceManual    SourceType = "manual"
)

// Priority returns the resolution rank of the source type. Higher wins.
func (s SourceType) Priority() int {
	switch s {
	case SourceManual:
		return 3
	case SourceConnector:
		return 2
	case SourceDocument:
		return 1
	default:
		return 0
	}
}

// ValueKind selects which variant of MetricValue is authoritative. The kind
// is chosen by the registry's declared metric type, never inferred from the
// payload at read time.
type ValueKind string

const (
	ValueScalar     ValueKind = "scalar"
	ValueText       ValueKind = "text"
	ValueBoolean    ValueKind = "boolean"
	ValueRecordList ValueKind = "record_list"
	ValueTimeSeries ValueKind = "time_series"
)

// MetricValue is the closed-variant value union for a metric. Exactly one
// variant is semantically authoritative, selected by Kind. Boolean metrics
// fill both Numeric (0/1) and Text ("Yes"/"No") for storage uniformity.
type MetricValue struct {
	Kind    ValueKind            `json:"kind"`
	Numeric *float64             `json:"numeric_value,omitempty"`
	Text    string               `json:"text_value,omitempty"`
	Records []map[string]any     `json:"records,omitempty"`
	Series  map[string]float64   `json:"series,omitempty"`
}

// Display renders the authoritative variant as a short string.
func (v MetricValue) Display() string {
	switch v.Kind {
	case ValueScalar:
		if v.Numeric == nil {
			return ""
		}
		return fmt.Sprintf("%g", *v.Numeric)
	case ValueText, ValueBoolean:
		return v.Text
	case ValueRecordList:
		return fmt.Sprintf("%d records", len(v.Records))
	case ValueTimeSeries:
		return fmt.Sprintf("%d points", len(v.Series))
	default:
		return ""
	}
}

// Metric is one versioned, typed observation about a company within a
// scoring run. Rows are append-only: the resolver flips IsCurrent and sets
// SupersededBy, nothing is ever deleted.
type Metric struct {
	ID                 string      `json:"id"`
	CompanyID          string      `json:"company_id"`
	TenantID           string      `json:"tenant_id"`
	ScoringRunID       string      `json:"scoring_run_id"`
	Name               string      `json:"name"`
	Value              MetricValue `json:"value"`
	Unit               string      `json:"unit,omitempty"`
	Period             string      `json:"period,omitempty"`
	AsOfDate           *time.Time  `json:"as_of_date,omitempty"`
	PrimaryPillar      Pillar      `json:"primary_pillar"`
	PillarsUsedBy      []Pillar    `json:"pillars_used_by,omitempty"`
	SourceChunkIDs     []string    `json:"source_chunk_ids,omitempty"`
	Confidence         int         `json:"confidence"` // 0-100
	SourceType         SourceType  `json:"source_type"`
	Corroborated       bool        `json:"corroborated,omitempty"`
	IsCurrent          bool        `json:"is_current"`
	SupersededBy       string      `json:"superseded_by,omitempty"`
	NeedsAnalystReview bool        `json:"needs_analyst_review,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// MetricObservation is a candidate metric produced by the extractor before
// it has been through conflict resolution. Confidence is in [0,1] here; it
// becomes 0-100 when persisted as a Metric.
type MetricObservation struct {
	Name         string      `json:"name"`
	Value        MetricValue `json:"value"`
	Unit         string      `json:"unit,omitempty"`
	Period       string      `json:"period,omitempty"`
	AsOfDate     *time.Time  `json:"as_of_date,omitempty"`
	Pillar       Pillar      `json:"pillar"`
	ChunkIDs     []string    `json:"chunk_ids"`
	Confidence   float64     `json:"confidence"`
	SourceType   SourceType  `json:"source_type"`
	Corroborated bool        `json:"corroborated"`
	Context      string      `json:"context,omitempty"`
}
