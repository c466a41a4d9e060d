package storage

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyhq/sentinel/pkg/workflow"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db, nil), mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflows (id, violation_id, tenant_id, status, priority, created_at, updated_at, version, document) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)")).
		WithArgs("w1", "v1", "t1", "pending", "high", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	wf := newWorkflow("w1", "v1", "t1", workflow.StatusPending, 0)
	require.NoError(t, store.Create(ctx, wf))
	assert.Equal(t, int64(1), wf.Version)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflows")).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Create(ctx, newWorkflow("w1", "v1", "t1", workflow.StatusPending, 0))
	assert.True(t, errors.Is(err, workflow.ErrDuplicate), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockPostgres(t)
	ctx := context.Background()

	doc, err := json.Marshal(newWorkflow("w1", "v1", "t1", workflow.StatusInReview, 0))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document, version FROM workflows WHERE id = $1")).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}).AddRow(string(doc), int64(4)))

	got, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusInReview, got.Status)
	assert.Equal(t, int64(4), got.Version)
	assert.Len(t, got.Steps, 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document, version FROM workflows WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}))

	_, err = store.Get(ctx, "missing")
	var nf *workflow.NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAppendsTransition(t *testing.T) {
	store, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflows SET status = $1, priority = $2, updated_at = $3, version = $4, document = $5 WHERE id = $6 AND version = $7")).
		WithArgs("in_review", "high", sqlmock.AnyArg(), int64(3), sqlmock.AnyArg(), "w1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflow_transitions")).
		WithArgs("tr1", "w1", int64(3), "pending", "in_review", "submit", "alice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	wf := newWorkflow("w1", "v1", "t1", workflow.StatusInReview, 0)
	tr := &workflow.Transition{
		ID: "tr1", WorkflowID: "w1",
		FromStatus: workflow.StatusPending, ToStatus: workflow.StatusInReview,
		Action: workflow.ActionSubmit, PerformedBy: "alice", PerformedAt: created,
	}
	require.NoError(t, store.Update(ctx, wf, 2, tr))
	assert.Equal(t, int64(3), wf.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateVersionConflict(t *testing.T) {
	store, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflows SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM workflows WHERE id = $1")).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	wf := newWorkflow("w1", "v1", "t1", workflow.StatusCancelled, 0)
	err := store.Update(ctx, wf, 5, nil)
	assert.True(t, errors.Is(err, workflow.ErrVersionConflict), "got %v", err)
	assert.Equal(t, int64(0), wf.Version, "version must not change on conflict")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActive(t *testing.T) {
	store, mock := newMockPostgres(t)
	ctx := context.Background()

	doc, err := json.Marshal(newWorkflow("w1", "v1", "t1", workflow.StatusEscalated, 0))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document, version FROM workflows WHERE status NOT IN ($1, $2, $3) ORDER BY created_at, id")).
		WithArgs("resolved", "cancelled", "rejected").
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}).AddRow(string(doc), int64(7)))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "w1", active[0].ID)
	assert.Equal(t, int64(7), active[0].Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}
