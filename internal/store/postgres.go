package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-cli/internal/model"
)

// pgxQuerier is the subset of pgxpool.Pool the store needs. Tests substitute
// a pgxmock pool.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on a pgx connection pool. It is the
// production backend; metric values and evaluation payloads live in JSONB.
type PostgresStore struct {
	pool pgxQuerier
}

// NewPostgres connects a pool to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool or mock.
func NewPostgresFromPool(pool pgxQuerier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scoring_runs (
	id            UUID PRIMARY KEY,
	company_id    TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	error_message TEXT,
	result        JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evidence_chunks (
	id          UUID PRIMARY KEY,
	company_id  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	pillar      TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_name TEXT,
	chunk_text  TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metrics (
	id                   UUID PRIMARY KEY,
	company_id           TEXT NOT NULL,
	tenant_id            TEXT NOT NULL,
	scoring_run_id       UUID NOT NULL,
	name                 TEXT NOT NULL,
	value                JSONB NOT NULL,
	unit                 TEXT,
	period               TEXT,
	as_of_date           TIMESTAMPTZ,
	primary_pillar       TEXT NOT NULL,
	pillars_used_by      JSONB,
	source_chunk_ids     JSONB,
	confidence           INTEGER NOT NULL DEFAULT 0,
	source_type          TEXT NOT NULL,
	corroborated         BOOLEAN NOT NULL DEFAULT false,
	is_current           BOOLEAN NOT NULL DEFAULT true,
	superseded_by        UUID,
	needs_analyst_review BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pillar_evaluations (
	id             UUID PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id UUID NOT NULL,
	pillar         TEXT NOT NULL,
	payload        JSONB NOT NULL,
	is_current     BOOLEAN NOT NULL DEFAULT true,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pillar_scores (
	id                UUID PRIMARY KEY,
	company_id        TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	scoring_run_id    UUID NOT NULL,
	pillar            TEXT NOT NULL,
	score             DOUBLE PRECISION NOT NULL,
	health_status     TEXT NOT NULL,
	coverage_percent  INTEGER NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	insufficient_data BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, scoring_run_id, pillar)
);

CREATE TABLE IF NOT EXISTS flags (
	id             UUID PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id UUID NOT NULL,
	color          TEXT NOT NULL,
	category       TEXT NOT NULL,
	pillar         TEXT,
	severity       INTEGER NOT NULL,
	title          TEXT NOT NULL,
	detail         TEXT,
	evidence_refs  JSONB,
	dismissed      BOOLEAN NOT NULL DEFAULT false,
	dismissed_by   TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bde_scores (
	id             UUID PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id UUID NOT NULL,
	overall_score  INTEGER NOT NULL,
	weighted_raw   DOUBLE PRECISION NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, scoring_run_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_company ON scoring_runs(company_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON scoring_runs(status);
CREATE INDEX IF NOT EXISTS idx_evidence_company_pillar ON evidence_chunks(company_id, pillar);
CREATE INDEX IF NOT EXISTS idx_metrics_current ON metrics(company_id, scoring_run_id, name) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_evaluations_current ON pillar_evaluations(company_id, pillar) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_flags_run ON flags(company_id, scoring_run_id) WHERE NOT dismissed;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Scoring runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, companyID, tenantID string) (*model.ScoringRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scoring_runs (id, company_id, tenant_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, companyID, tenantID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ScoringRun{
		ID:        id,
		CompanyID: companyID,
		TenantID:  tenantID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scoring_runs SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scoring_runs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE scoring_runs SET result = $1, status = $2, updated_at = now() WHERE id = $3`,
		resultJSON, string(model.RunStatusCompleted), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ScoringRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company_id, tenant_id, status, error_message, result, created_at, updated_at
		 FROM scoring_runs WHERE id = $1`, runID)

	run, err := scanRunPg(row)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{Entity: "run", ID: runID}
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScoringRun, error) {
	query := `SELECT id, company_id, tenant_id, status, error_message, result, created_at, updated_at
		FROM scoring_runs WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += ` AND company_id = $` + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScoringRun
	for rows.Next() {
		run, err := scanRunPg(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs rows")
}

// --- Evidence ---

func (s *PostgresStore) InsertEvidence(ctx context.Context, chunk model.EvidenceChunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evidence_chunks (id, company_id, tenant_id, pillar, source_type, source_name, chunk_text, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chunk.ID, chunk.CompanyID, chunk.TenantID, string(chunk.Pillar), string(chunk.SourceType),
		chunk.SourceName, chunk.Text, chunk.Confidence, chunk.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert evidence")
}

func (s *PostgresStore) ListEvidence(ctx context.Context, companyID string, pillar model.Pillar) ([]model.EvidenceChunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, tenant_id, pillar, source_type, COALESCE(source_name, ''), chunk_text, confidence, created_at
		 FROM evidence_chunks WHERE company_id = $1 AND pillar = $2 ORDER BY created_at`,
		companyID, string(pillar),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence")
	}
	defer rows.Close()

	var chunks []model.EvidenceChunk
	for rows.Next() {
		var c model.EvidenceChunk
		var pillarStr, sourceStr string
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.TenantID, &pillarStr, &sourceStr, &c.SourceName, &c.Text, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		c.Pillar = model.Pillar(pillarStr)
		c.SourceType = model.SourceType(sourceStr)
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "postgres: list evidence rows")
}

// --- Metrics ---

const pgMetricColumns = `id, company_id, tenant_id, scoring_run_id, name, value, COALESCE(unit, ''),
	COALESCE(period, ''), as_of_date, primary_pillar, pillars_used_by, source_chunk_ids, confidence,
	source_type, corroborated, is_current, COALESCE(superseded_by::text, ''), needs_analyst_review, created_at`

func (s *PostgresStore) InsertMetric(ctx context.Context, m model.Metric) error {
	valueJSON, err := json.Marshal(m.Value)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metric value")
	}
	pillarsJSON, err := json.Marshal(m.PillarsUsedBy)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pillars_used_by")
	}
	chunksJSON, err := json.Marshal(m.SourceChunkIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source_chunk_ids")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO metrics (id, company_id, tenant_id, scoring_run_id, name, value, unit, period, as_of_date,
		   primary_pillar, pillars_used_by, source_chunk_ids, confidence, source_type, corroborated,
		   is_current, superseded_by, needs_analyst_review, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.ID, m.CompanyID, m.TenantID, m.ScoringRunID, m.Name, valueJSON, m.Unit, m.Period, m.AsOfDate,
		string(m.PrimaryPillar), pillarsJSON, chunksJSON, m.Confidence, string(m.SourceType), m.Corroborated,
		m.IsCurrent, nullIfEmpty(m.SupersededBy), m.NeedsAnalystReview, m.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert metric %s", m.Name)
}

func (s *PostgresStore) SupersedeMetric(ctx context.Context, oldID, newID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE metrics SET is_current = false, superseded_by = $1 WHERE id = $2`,
		newID, oldID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: supersede metric %s", oldID)
	}
	return checkTag(tag, "metric", oldID)
}

func (s *PostgresStore) MarkMetricNeedsReview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE metrics SET needs_analyst_review = true WHERE id = $1`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark metric review %s", id)
	}
	return checkTag(tag, "metric", id)
}

func (s *PostgresStore) CurrentMetricsByName(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+pgMetricColumns+` FROM metrics
		 WHERE company_id = $1 AND scoring_run_id = $2 AND name = $3 AND is_current ORDER BY created_at`,
		companyID, runID, name)
}

func (s *PostgresStore) CurrentMetrics(ctx context.Context, companyID, runID string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+pgMetricColumns+` FROM metrics
		 WHERE company_id = $1 AND scoring_run_id = $2 AND is_current ORDER BY name, created_at`,
		companyID, runID)
}

func (s *PostgresStore) MetricVersions(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+pgMetricColumns+` FROM metrics
		 WHERE company_id = $1 AND scoring_run_id = $2 AND name = $3 ORDER BY created_at`,
		companyID, runID, name)
}

func (s *PostgresStore) queryMetrics(ctx context.Context, query string, args ...any) ([]model.Metric, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query metrics")
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		m, err := scanMetricPg(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, *m)
	}
	return metrics, eris.Wrap(rows.Err(), "postgres: metrics rows")
}

// --- Evaluations ---

func (s *PostgresStore) InsertEvaluation(ctx context.Context, ev model.PillarEvaluation) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evaluation")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin evaluation tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE pillar_evaluations SET is_current = false WHERE company_id = $1 AND pillar = $2 AND is_current`,
		ev.CompanyID, string(ev.Pillar),
	); err != nil {
		return eris.Wrap(err, "postgres: retire prior evaluations")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO pillar_evaluations (id, company_id, tenant_id, scoring_run_id, pillar, payload, is_current, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
		ev.ID, ev.CompanyID, ev.TenantID, ev.ScoringRunID, string(ev.Pillar), payload, ev.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "postgres: insert evaluation")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit evaluation")
}

func (s *PostgresStore) CurrentEvaluation(ctx context.Context, companyID string, pillar model.Pillar) (*model.PillarEvaluation, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM pillar_evaluations
		 WHERE company_id = $1 AND pillar = $2 AND is_current ORDER BY created_at DESC LIMIT 1`,
		companyID, string(pillar),
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{Entity: "evaluation", ID: companyID + "/" + string(pillar)}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get evaluation")
	}

	var ev model.PillarEvaluation
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
	}
	return &ev, nil
}

// --- Pillar scores ---

func (s *PostgresStore) UpsertPillarScore(ctx context.Context, ps model.PillarScore) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pillar_scores (id, company_id, tenant_id, scoring_run_id, pillar, score, health_status,
		   coverage_percent, confidence, insufficient_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (company_id, scoring_run_id, pillar) DO UPDATE SET
		   score = EXCLUDED.score, health_status = EXCLUDED.health_status,
		   coverage_percent = EXCLUDED.coverage_percent, confidence = EXCLUDED.confidence,
		   insufficient_data = EXCLUDED.insufficient_data`,
		ps.ID, ps.CompanyID, ps.TenantID, ps.ScoringRunID, string(ps.Pillar), ps.Score, string(ps.HealthStatus),
		ps.DataCoveragePercent, ps.Confidence, ps.InsufficientData, ps.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert pillar score %s", ps.Pillar)
}

func (s *PostgresStore) ListPillarScores(ctx context.Context, companyID, runID string) ([]model.PillarScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, tenant_id, scoring_run_id, pillar, score, health_status, coverage_percent,
		   confidence, insufficient_data, created_at
		 FROM pillar_scores WHERE company_id = $1 AND scoring_run_id = $2 ORDER BY pillar`,
		companyID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pillar scores")
	}
	defer rows.Close()

	var scores []model.PillarScore
	for rows.Next() {
		var ps model.PillarScore
		var pillarStr, healthStr string
		if err := rows.Scan(&ps.ID, &ps.CompanyID, &ps.TenantID, &ps.ScoringRunID, &pillarStr, &ps.Score,
			&healthStr, &ps.DataCoveragePercent, &ps.Confidence, &ps.InsufficientData, &ps.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pillar score")
		}
		ps.Pillar = model.Pillar(pillarStr)
		ps.HealthStatus = model.HealthStatus(healthStr)
		scores = append(scores, ps)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: pillar score rows")
}

// --- Flags ---

func (s *PostgresStore) InsertFlag(ctx context.Context, f model.Flag) error {
	refsJSON, err := json.Marshal(f.EvidenceRefs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence refs")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO flags (id, company_id, tenant_id, scoring_run_id, color, category, pillar, severity,
		   title, detail, evidence_refs, dismissed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12)`,
		f.ID, f.CompanyID, f.TenantID, f.ScoringRunID, string(f.Color), string(f.Category),
		nullIfEmpty(string(f.Pillar)), f.Severity, f.Title, f.Detail, refsJSON, f.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert flag %s", f.Title)
}

func (s *PostgresStore) ListActiveFlags(ctx context.Context, companyID, runID string) ([]model.Flag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, tenant_id, scoring_run_id, color, category, COALESCE(pillar, ''), severity,
		   title, COALESCE(detail, ''), evidence_refs, dismissed, COALESCE(dismissed_by, ''), created_at
		 FROM flags WHERE company_id = $1 AND scoring_run_id = $2 AND NOT dismissed
		 ORDER BY severity DESC, created_at`,
		companyID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flags")
	}
	defer rows.Close()

	var flags []model.Flag
	for rows.Next() {
		var f model.Flag
		var color, category, pillarStr string
		var refsJSON []byte
		if err := rows.Scan(&f.ID, &f.CompanyID, &f.TenantID, &f.ScoringRunID, &color, &category, &pillarStr,
			&f.Severity, &f.Title, &f.Detail, &refsJSON, &f.Dismissed, &f.DismissedBy, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flag")
		}
		f.Color = model.FlagColor(color)
		f.Category = model.FlagCategory(category)
		f.Pillar = model.Pillar(pillarStr)
		if len(refsJSON) > 0 {
			if err := json.Unmarshal(refsJSON, &f.EvidenceRefs); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal evidence refs")
			}
		}
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: flag rows")
}

func (s *PostgresStore) DismissFlag(ctx context.Context, flagID, analyst string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE flags SET dismissed = true, dismissed_by = $1 WHERE id = $2`,
		analyst, flagID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: dismiss flag %s", flagID)
	}
	return checkTag(tag, "flag", flagID)
}

// --- BDE scores ---

func (s *PostgresStore) InsertBDEScore(ctx context.Context, sc model.BDEScore) error {
	payload, err := json.Marshal(sc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bde score")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO bde_scores (id, company_id, tenant_id, scoring_run_id, overall_score, weighted_raw, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sc.ID, sc.CompanyID, sc.TenantID, sc.ScoringRunID, sc.OverallScore, sc.WeightedRaw, payload, sc.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert bde score")
}

func (s *PostgresStore) GetBDEScore(ctx context.Context, companyID, runID string) (*model.BDEScore, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM bde_scores WHERE company_id = $1 AND scoring_run_id = $2`,
		companyID, runID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{Entity: "bde_score", ID: companyID + "/" + runID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get bde score")
	}

	var sc model.BDEScore
	if err := json.Unmarshal(payload, &sc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal bde score")
	}
	return &sc, nil
}

// --- scan helpers ---

func scanRunPg(row rowScanner) (*model.ScoringRun, error) {
	var run model.ScoringRun
	var status string
	var errMsg *string
	var resultJSON []byte

	err := row.Scan(&run.ID, &run.CompanyID, &run.TenantID, &status, &errMsg, &resultJSON, &run.CreatedAt, &run.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	run.Status = model.RunStatus(status)
	if errMsg != nil {
		run.ErrorMessage = *errMsg
	}
	if len(resultJSON) > 0 {
		var result model.RunResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
		run.Result = &result
	}
	return &run, nil
}

func scanMetricPg(row rowScanner) (*model.Metric, error) {
	var m model.Metric
	var valueJSON, pillarsJSON, chunksJSON []byte
	var pillarStr, sourceStr string
	var asOf *time.Time

	err := row.Scan(&m.ID, &m.CompanyID, &m.TenantID, &m.ScoringRunID, &m.Name, &valueJSON, &m.Unit, &m.Period,
		&asOf, &pillarStr, &pillarsJSON, &chunksJSON, &m.Confidence, &sourceStr, &m.Corroborated,
		&m.IsCurrent, &m.SupersededBy, &m.NeedsAnalystReview, &m.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan metric")
	}

	if err := json.Unmarshal(valueJSON, &m.Value); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metric value")
	}
	if len(pillarsJSON) > 0 {
		if err := json.Unmarshal(pillarsJSON, &m.PillarsUsedBy); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal pillars_used_by")
		}
	}
	if len(chunksJSON) > 0 {
		if err := json.Unmarshal(chunksJSON, &m.SourceChunkIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal source_chunk_ids")
		}
	}
	m.AsOfDate = asOf
	m.PrimaryPillar = model.Pillar(pillarStr)
	m.SourceType = model.SourceType(sourceStr)
	return &m, nil
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
