package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/diligence-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-analyst runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scoring_runs (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	error_message TEXT,
	result        TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evidence_chunks (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	pillar      TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_name TEXT,
	chunk_text  TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS metrics (
	id                   TEXT PRIMARY KEY,
	company_id           TEXT NOT NULL,
	tenant_id            TEXT NOT NULL,
	scoring_run_id       TEXT NOT NULL,
	name                 TEXT NOT NULL,
	value                TEXT NOT NULL,
	unit                 TEXT,
	period               TEXT,
	as_of_date           DATETIME,
	primary_pillar       TEXT NOT NULL,
	pillars_used_by      TEXT,
	source_chunk_ids     TEXT,
	confidence           INTEGER NOT NULL DEFAULT 0,
	source_type          TEXT NOT NULL,
	corroborated         INTEGER NOT NULL DEFAULT 0,
	is_current           INTEGER NOT NULL DEFAULT 1,
	superseded_by        TEXT,
	needs_analyst_review INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pillar_evaluations (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id TEXT NOT NULL,
	pillar         TEXT NOT NULL,
	payload        TEXT NOT NULL,
	is_current     INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pillar_scores (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL,
	tenant_id         TEXT NOT NULL,
	scoring_run_id    TEXT NOT NULL,
	pillar            TEXT NOT NULL,
	score             REAL NOT NULL,
	health_status     TEXT NOT NULL,
	coverage_percent  INTEGER NOT NULL,
	confidence        REAL NOT NULL,
	insufficient_data INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, scoring_run_id, pillar)
);

CREATE TABLE IF NOT EXISTS flags (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id TEXT NOT NULL,
	color          TEXT NOT NULL,
	category       TEXT NOT NULL,
	pillar         TEXT,
	severity       INTEGER NOT NULL,
	title          TEXT NOT NULL,
	detail         TEXT,
	evidence_refs  TEXT,
	dismissed      INTEGER NOT NULL DEFAULT 0,
	dismissed_by   TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bde_scores (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	scoring_run_id TEXT NOT NULL,
	overall_score  INTEGER NOT NULL,
	weighted_raw   REAL NOT NULL,
	payload        TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, scoring_run_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_company ON scoring_runs(company_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON scoring_runs(status);
CREATE INDEX IF NOT EXISTS idx_evidence_company_pillar ON evidence_chunks(company_id, pillar);
CREATE INDEX IF NOT EXISTS idx_metrics_current ON metrics(company_id, scoring_run_id, name, is_current);
CREATE INDEX IF NOT EXISTS idx_evaluations_current ON pillar_evaluations(company_id, pillar, is_current);
CREATE INDEX IF NOT EXISTS idx_scores_run ON pillar_scores(company_id, scoring_run_id);
CREATE INDEX IF NOT EXISTS idx_flags_run ON flags(company_id, scoring_run_id, dismissed);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Scoring runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, companyID, tenantID string) (*model.ScoringRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scoring_runs (id, company_id, tenant_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, companyID, tenantID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scoring_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scoring_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scoring_runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ScoringRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, tenant_id, status, error_message, result, created_at, updated_at
		 FROM scoring_runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScoringRun, error) {
	query := `SELECT id, company_id, tenant_id, status, error_message, result, created_at, updated_at
		FROM scoring_runs WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ScoringRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs rows")
}

// --- Evidence ---

func (s *SQLiteStore) InsertEvidence(ctx context.Context, chunk model.EvidenceChunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence_chunks (id, company_id, tenant_id, pillar, source_type, source_name, chunk_text, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.CompanyID, chunk.TenantID, string(chunk.Pillar), string(chunk.SourceType),
		chunk.SourceName, chunk.Text, chunk.Confidence, chunk.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert evidence")
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, companyID string, pillar model.Pillar) ([]model.EvidenceChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, tenant_id, pillar, source_type, source_name, chunk_text, confidence, created_at
		 FROM evidence_chunks WHERE company_id = ? AND pillar = ? ORDER BY created_at`,
		companyID, string(pillar),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence")
	}
	defer rows.Close()

	var chunks []model.EvidenceChunk
	for rows.Next() {
		var c model.EvidenceChunk
		var pillarStr, sourceStr string
		var sourceName sql.NullString
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.TenantID, &pillarStr, &sourceStr, &sourceName, &c.Text, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		c.Pillar = model.Pillar(pillarStr)
		c.SourceType = model.SourceType(sourceStr)
		c.SourceName = sourceName.String
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "sqlite: list evidence rows")
}

// --- Metrics ---

func (s *SQLiteStore) InsertMetric(ctx context.Context, m model.Metric) error {
	valueJSON, err := json.Marshal(m.Value)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metric value")
	}
	pillarsJSON, err := json.Marshal(m.PillarsUsedBy)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pillars_used_by")
	}
	chunksJSON, err := json.Marshal(m.SourceChunkIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source_chunk_ids")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metrics (id, company_id, tenant_id, scoring_run_id, name, value, unit, period, as_of_date,
		   primary_pillar, pillars_used_by, source_chunk_ids, confidence, source_type, corroborated,
		   is_current, superseded_by, needs_analyst_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CompanyID, m.TenantID, m.ScoringRunID, m.Name, string(valueJSON), m.Unit, m.Period, m.AsOfDate,
		string(m.PrimaryPillar), string(pillarsJSON), string(chunksJSON), m.Confidence, string(m.SourceType),
		boolToInt(m.Corroborated), boolToInt(m.IsCurrent), nullIfEmpty(m.SupersededBy),
		boolToInt(m.NeedsAnalystReview), m.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert metric %s", m.Name)
}

func (s *SQLiteStore) SupersedeMetric(ctx context.Context, oldID, newID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE metrics SET is_current = 0, superseded_by = ? WHERE id = ?`,
		newID, oldID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: supersede metric %s", oldID)
	}
	return checkRowsAffected(res, "metric", oldID)
}

func (s *SQLiteStore) MarkMetricNeedsReview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE metrics SET needs_analyst_review = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark metric review %s", id)
	}
	return checkRowsAffected(res, "metric", id)
}

const sqliteMetricColumns = `id, company_id, tenant_id, scoring_run_id, name, value, unit, period, as_of_date,
	primary_pillar, pillars_used_by, source_chunk_ids, confidence, source_type, corroborated,
	is_current, superseded_by, needs_analyst_review, created_at`

func (s *SQLiteStore) CurrentMetricsByName(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+sqliteMetricColumns+` FROM metrics
		 WHERE company_id = ? AND scoring_run_id = ? AND name = ? AND is_current = 1 ORDER BY created_at`,
		companyID, runID, name)
}

func (s *SQLiteStore) CurrentMetrics(ctx context.Context, companyID, runID string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+sqliteMetricColumns+` FROM metrics
		 WHERE company_id = ? AND scoring_run_id = ? AND is_current = 1 ORDER BY name, created_at`,
		companyID, runID)
}

func (s *SQLiteStore) MetricVersions(ctx context.Context, companyID, runID, name string) ([]model.Metric, error) {
	return s.queryMetrics(ctx,
		`SELECT `+sqliteMetricColumns+` FROM metrics
		 WHERE company_id = ? AND scoring_run_id = ? AND name = ? ORDER BY created_at`,
		companyID, runID, name)
}

func (s *SQLiteStore) queryMetrics(ctx context.Context, query string, args ...any) ([]model.Metric, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query metrics")
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, *m)
	}
	return metrics, eris.Wrap(rows.Err(), "sqlite: metrics rows")
}

// --- Evaluations ---

func (s *SQLiteStore) InsertEvaluation(ctx context.Context, ev model.PillarEvaluation) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evaluation")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin evaluation tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE pillar_evaluations SET is_current = 0 WHERE company_id = ? AND pillar = ? AND is_current = 1`,
		ev.CompanyID, string(ev.Pillar),
	); err != nil {
		return eris.Wrap(err, "sqlite: retire prior evaluations")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pillar_evaluations (id, company_id, tenant_id, scoring_run_id, pillar, payload, is_current, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		ev.ID, ev.CompanyID, ev.TenantID, ev.ScoringRunID, string(ev.Pillar), string(payload), ev.CreatedAt,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert evaluation")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit evaluation")
}

func (s *SQLiteStore) CurrentEvaluation(ctx context.Context, companyID string, pillar model.Pillar) (*model.PillarEvaluation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM pillar_evaluations
		 WHERE company_id = ? AND pillar = ? AND is_current = 1 ORDER BY created_at DESC LIMIT 1`,
		companyID, string(pillar),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "evaluation", ID: companyID + "/" + string(pillar)}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get evaluation")
	}

	var ev model.PillarEvaluation
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
	}
	return &ev, nil
}

// --- Pillar scores ---

func (s *SQLiteStore) UpsertPillarScore(ctx context.Context, ps model.PillarScore) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pillar_scores (id, company_id, tenant_id, scoring_run_id, pillar, score, health_status,
		   coverage_percent, confidence, insufficient_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, scoring_run_id, pillar) DO UPDATE SET
		   score = excluded.score, health_status = excluded.health_status,
		   coverage_percent = excluded.coverage_percent, confidence = excluded.confidence,
		   insufficient_data = excluded.insufficient_data`,
		ps.ID, ps.CompanyID, ps.TenantID, ps.ScoringRunID, string(ps.Pillar), ps.Score, string(ps.HealthStatus),
		ps.DataCoveragePercent, ps.Confidence, boolToInt(ps.InsufficientData), ps.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert pillar score %s", ps.Pillar)
}

func (s *SQLiteStore) ListPillarScores(ctx context.Context, companyID, runID string) ([]model.PillarScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, tenant_id, scoring_run_id, pillar, score, health_status, coverage_percent,
		   confidence, insufficient_data, created_at
		 FROM pillar_scores WHERE company_id = ? AND scoring_run_id = ? ORDER BY pillar`,
		companyID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pillar scores")
	}
	defer rows.Close()

	var scores []model.PillarScore
	for rows.Next() {
		var ps model.PillarScore
		var pillarStr, healthStr string
		var insufficient int
		if err := rows.Scan(&ps.ID, &ps.CompanyID, &ps.TenantID, &ps.ScoringRunID, &pillarStr, &ps.Score,
			&healthStr, &ps.DataCoveragePercent, &ps.Confidence, &insufficient, &ps.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pillar score")
		}
		ps.Pillar = model.Pillar(pillarStr)
		ps.HealthStatus = model.HealthStatus(healthStr)
		ps.InsufficientData = insufficient != 0
		scores = append(scores, ps)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: pillar score rows")
}

// --- Flags ---

func (s *SQLiteStore) InsertFlag(ctx context.Context, f model.Flag) error {
	refsJSON, err := json.Marshal(f.EvidenceRefs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence refs")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flags (id, company_id, tenant_id, scoring_run_id, color, category, pillar, severity,
		   title, detail, evidence_refs, dismissed, dismissed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
		f.ID, f.CompanyID, f.TenantID, f.ScoringRunID, string(f.Color), string(f.Category),
		nullIfEmpty(string(f.Pillar)), f.Severity, f.Title, f.Detail, string(refsJSON), f.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert flag %s", f.Title)
}

func (s *SQLiteStore) ListActiveFlags(ctx context.Context, companyID, runID string) ([]model.Flag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, tenant_id, scoring_run_id, color, category, pillar, severity, title, detail,
		   evidence_refs, dismissed, dismissed_by, created_at
		 FROM flags WHERE company_id = ? AND scoring_run_id = ? AND dismissed = 0 ORDER BY severity DESC, created_at`,
		companyID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flags")
	}
	defer rows.Close()

	var flags []model.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	return flags, eris.Wrap(rows.Err(), "sqlite: flag rows")
}

func (s *SQLiteStore) DismissFlag(ctx context.Context, flagID, analyst string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flags SET dismissed = 1, dismissed_by = ? WHERE id = ?`,
		analyst, flagID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: dismiss flag %s", flagID)
	}
	return checkRowsAffected(res, "flag", flagID)
}

// --- BDE scores ---

func (s *SQLiteStore) InsertBDEScore(ctx context.Context, sc model.BDEScore) error {
	payload, err := json.Marshal(sc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal bde score")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bde_scores (id, company_id, tenant_id, scoring_run_id, overall_score, weighted_raw, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.CompanyID, sc.TenantID, sc.ScoringRunID, sc.OverallScore, sc.WeightedRaw, string(payload), sc.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert bde score")
}

func (s *SQLiteStore) GetBDEScore(ctx context.Context, companyID, runID string) (*model.BDEScore, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM bde_scores WHERE company_id = ? AND scoring_run_id = ?`,
		companyID, runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "bde_score", ID: companyID + "/" + runID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get bde score")
	}

	var sc model.BDEScore
	if err := json.Unmarshal([]byte(payload), &sc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal bde score")
	}
	return &sc, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.ScoringRun, error) {
	var run model.ScoringRun
	var status string
	var errMsg, resultJSON sql.NullString

	err := row.Scan(&run.ID, &run.CompanyID, &run.TenantID, &status, &errMsg, &resultJSON, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "run", ID: run.ID}
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	run.Status = model.RunStatus(status)
	run.ErrorMessage = errMsg.String
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run result")
		}
		run.Result = &result
	}
	return &run, nil
}

func scanMetric(row rowScanner) (*model.Metric, error) {
	var m model.Metric
	var valueJSON, pillarStr, sourceStr string
	var unit, period, pillarsJSON, chunksJSON, supersededBy sql.NullString
	var asOf sql.NullTime
	var corroborated, isCurrent, needsReview int

	err := row.Scan(&m.ID, &m.CompanyID, &m.TenantID, &m.ScoringRunID, &m.Name, &valueJSON, &unit, &period,
		&asOf, &pillarStr, &pillarsJSON, &chunksJSON, &m.Confidence, &sourceStr, &corroborated,
		&isCurrent, &supersededBy, &needsReview, &m.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan metric")
	}

	if err := json.Unmarshal([]byte(valueJSON), &m.Value); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal metric value")
	}
	if pillarsJSON.Valid && pillarsJSON.String != "" {
		if err := json.Unmarshal([]byte(pillarsJSON.String), &m.PillarsUsedBy); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal pillars_used_by")
		}
	}
	if chunksJSON.Valid && chunksJSON.String != "" {
		if err := json.Unmarshal([]byte(chunksJSON.String), &m.SourceChunkIDs); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal source_chunk_ids")
		}
	}
	m.Unit = unit.String
	m.Period = period.String
	if asOf.Valid {
		t := asOf.Time
		m.AsOfDate = &t
	}
	m.PrimaryPillar = model.Pillar(pillarStr)
	m.SourceType = model.SourceType(sourceStr)
	m.Corroborated = corroborated != 0
	m.IsCurrent = isCurrent != 0
	m.SupersededBy = supersededBy.String
	m.NeedsAnalystReview = needsReview != 0
	return &m, nil
}

func scanFlag(row rowScanner) (*model.Flag, error) {
	var f model.Flag
	var color, category string
	var pillar, detail, refsJSON, dismissedBy sql.NullString
	var dismissed int

	err := row.Scan(&f.ID, &f.CompanyID, &f.TenantID, &f.ScoringRunID, &color, &category, &pillar,
		&f.Severity, &f.Title, &detail, &refsJSON, &dismissed, &dismissedBy, &f.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan flag")
	}

	f.Color = model.FlagColor(color)
	f.Category = model.FlagCategory(category)
	f.Pillar = model.Pillar(pillar.String)
	f.Detail = detail.String
	f.Dismissed = dismissed != 0
	f.DismissedBy = dismissedBy.String
	if refsJSON.Valid && refsJSON.String != "" {
		if err := json.Unmarshal([]byte(refsJSON.String), &f.EvidenceRefs); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal evidence refs")
		}
	}
	return &f, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
