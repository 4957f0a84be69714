package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO scoring_runs").
		WithArgs(pgxmock.AnyArg(), "acme", "tenant-1", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "acme", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatusNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	runID := uuid.New().String()

	mock.ExpectExec("UPDATE scoring_runs SET status").
		WithArgs("processing", runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), runID, model.RunStatusProcessing)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "run", nf.Entity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockStore(t)
	runID := uuid.New().String()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "company_id", "tenant_id", "status", "error_message", "result", "created_at", "updated_at",
	}).AddRow(runID, "acme", "tenant-1", "completed", (*string)(nil),
		[]byte(`{"bde_score":{"overall_score":55},"duration_ms":900}`), now, now)

	mock.ExpectQuery("SELECT id, company_id, tenant_id, status").
		WithArgs(runID).
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 55, run.Result.BDE.OverallScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SupersedeMetric(t *testing.T) {
	s, mock := newMockStore(t)
	oldID, newID := uuid.New().String(), uuid.New().String()

	mock.ExpectExec("UPDATE metrics SET is_current = false").
		WithArgs(newID, oldID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SupersedeMetric(context.Background(), oldID, newID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertEvaluationRetiresPrior(t *testing.T) {
	s, mock := newMockStore(t)

	ev := model.PillarEvaluation{
		ID:           uuid.New().String(),
		CompanyID:    "acme",
		TenantID:     "tenant-1",
		ScoringRunID: uuid.New().String(),
		Pillar:       model.PillarGTMEngine,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE pillar_evaluations SET is_current = false").
		WithArgs("acme", "gtm_engine").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO pillar_evaluations").
		WithArgs(ev.ID, "acme", "tenant-1", ev.ScoringRunID, "gtm_engine", pgxmock.AnyArg(), ev.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertEvaluation(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBDEScoreNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	runID := uuid.New().String()

	mock.ExpectQuery("SELECT payload FROM bde_scores").
		WithArgs("acme", runID).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}))

	_, err := s.GetBDEScore(context.Background(), "acme", runID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "bde_score", nf.Entity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DismissFlag(t *testing.T) {
	s, mock := newMockStore(t)
	flagID := uuid.New().String()

	mock.ExpectExec("UPDATE flags SET dismissed = true").
		WithArgs("analyst@sells.group", flagID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.DismissFlag(context.Background(), flagID, "analyst@sells.group"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
