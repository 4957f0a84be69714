package store

import (
	"context"

	"github.com/sells-group/diligence-cli/internal/model"
)

// RunFilter specifies criteria for listing scoring runs.
type RunFilter struct {
	CompanyID string          `json:"company_id,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoring pipeline. Every
// write carries the scoring run id so historical runs remain independently
// queryable; writes are transactional per logical unit, not batched across
// the run.
type Store interface {
	// Scoring runs
	CreateRun(ctx context.Context, companyID, tenantID string) (*model.ScoringRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.ScoringRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScoringRun, error)

	// Evidence chunks (written by the external ingestion layer; read here)
	InsertEvidence(ctx context.Context, chunk model.EvidenceChunk) error
	ListEvidence(ctx context.Context, companyID string, pillar model.Pillar) ([]model.EvidenceChunk, error)

	// Metric version chains
	InsertMetric(ctx context.Context, m model.Metric) error
	SupersedeMetric(ctx context.Context, oldID, newID string) error
	MarkMetricNeedsReview(ctx context.Context, id string) error
	CurrentMetricsByName(ctx context.Context, companyID, runID, name string) ([]model.Metric, error)
	CurrentMetrics(ctx context.Context, companyID, runID string) ([]model.Metric, error)
	MetricVersions(ctx context.Context, companyID, runID, name string) ([]model.Metric, error)

	// Pillar evaluations (versioned: insert marks prior rows non-current)
	InsertEvaluation(ctx context.Context, ev model.PillarEvaluation) error
	CurrentEvaluation(ctx context.Context, companyID string, pillar model.Pillar) (*model.PillarEvaluation, error)

	// Pillar scores
	UpsertPillarScore(ctx context.Context, ps model.PillarScore) error
	ListPillarScores(ctx context.Context, companyID, runID string) ([]model.PillarScore, error)

	// Flags
	InsertFlag(ctx context.Context, f model.Flag) error
	ListActiveFlags(ctx context.Context, companyID, runID string) ([]model.Flag, error)
	DismissFlag(ctx context.Context, flagID, analyst string) error

	// BDE scores
	InsertBDEScore(ctx context.Context, s model.BDEScore) error
	GetBDEScore(ctx context.Context, companyID, runID string) (*model.BDEScore, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NotFoundError is returned when a lookup matches no rows.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found: " + e.ID
}
