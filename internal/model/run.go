package model

import "time"

// RunStatus is the lifecycle state of a scoring run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Stage identifies one of the five pipeline stages.
type Stage int

const (
	StageExtractingMetrics      Stage = 1
	StageAggregatingPillarData  Stage = 2
	StageEvaluatingPillars      Stage = 3
	StageDetectingFlags         Stage = 4
	StageCalculatingBDEScore    Stage = 5
)

// Name returns the wire name of the stage used in progress events.
func (s Stage) Name() string {
	switch s {
	case StageExtractingMetrics:
		return "extracting_metrics"
	case StageAggregatingPillarData:
		return "aggregating_pillar_data"
	case StageEvaluatingPillars:
		return "evaluating_scoring_pillars"
	case StageDetectingFlags:
		return "detecting_flags"
	case StageCalculatingBDEScore:
		return "calculating_bde_score"
	default:
		return "unknown"
	}
}

// ScoringRun records one execution of the pipeline for a company. The run ID
// is the correlation key threaded through every entity written during the
// run.
type ScoringRun struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	TenantID     string     `json:"tenant_id"`
	Status       RunStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Result       *RunResult `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RunResult is the terminal payload of a successful run.
type RunResult struct {
	BDE          BDEScore      `json:"bde_score"`
	PillarScores []PillarScore `json:"pillar_scores"`
	Flags        []Flag        `json:"flags"`
	FailedPillars []Pillar     `json:"failed_pillars,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
}

// PillarStatus is the sub-state of one pillar inside Stage 3.
type PillarStatus string

const (
	PillarPending    PillarStatus = "pending"
	PillarProcessing PillarStatus = "processing"
	PillarCompleted  PillarStatus = "completed"
	PillarFailed     PillarStatus = "failed"
)

// PillarProgress is the per-pillar entry in a progress event.
type PillarProgress struct {
	Status       PillarStatus  `json:"status"`
	Progress     int           `json:"progress"`
	Score        *float64      `json:"score,omitempty"`
	HealthStatus *HealthStatus `json:"health_status,omitempty"`
}

// ProgressEvent is the message contract consumed by the external
// broadcaster. Emitted on every stage transition and every pillar sub-state
// transition.
type ProgressEvent struct {
	CompanyID      string                    `json:"company_id"`
	ScoringRunID   string                    `json:"scoring_run_id"`
	Stage          Stage                     `json:"stage"`
	StageName      string                    `json:"stage_name"`
	Progress       int                       `json:"progress"` // 0-100, monotonic
	Status         RunStatus                 `json:"status"`
	CurrentPillar  Pillar                    `json:"current_pillar,omitempty"`
	PillarProgress map[Pillar]PillarProgress `json:"pillar_progress,omitempty"`
	ErrorMessage   string                    `json:"error_message,omitempty"`
	Result         *RunResult                `json:"result,omitempty"`
}
