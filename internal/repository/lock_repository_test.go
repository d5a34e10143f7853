package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
)

func newLockMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLockRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectExec("INSERT INTO document_locks").
		WithArgs(sqlmock.AnyArg(), "doc-1", "user-1", sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lock := &models.DocumentLock{DocumentID: "doc-1", LockedBy: "user-1"}
	err := repo.Create(context.Background(), lock)
	require.NoError(t, err)
	assert.NotEmpty(t, lock.ID)
	assert.False(t, lock.LockedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockRepositoryCreateUniqueViolationPassthrough(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectExec("INSERT INTO document_locks").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "document_locks_document_id_key"})

	err := repo.Create(context.Background(), &models.DocumentLock{DocumentID: "doc-1", LockedBy: "user-1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestLockRepositoryFindByDocumentID(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "locked_by", "locked_at", "handover_memo", "completed_paragraphs", "owner_name", "owner_email", "document_status"}).
		AddRow("lock-1", "doc-1", "user-1", now, nil, `[1,2,3]`, "Kim Minjun", "minjun@example.com", "IN_TRANSLATION")
	mock.ExpectQuery("SELECT l.id, l.document_id, l.locked_by").
		WithArgs("doc-1").
		WillReturnRows(rows)

	lock, err := repo.FindByDocumentID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", lock.LockedBy)
	assert.Equal(t, "Kim Minjun", lock.OwnerName)
	assert.Equal(t, models.StatusInTranslation, lock.DocumentStatus)
	assert.Equal(t, []int{1, 2, 3}, lock.Paragraphs())
}

func TestLockRepositoryFindByDocumentIDNoRows(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectQuery("SELECT l.id, l.document_id, l.locked_by").
		WithArgs("doc-unlocked").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByDocumentID(context.Background(), "doc-unlocked")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLockRepositoryUpdateProgress(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_locks SET completed_paragraphs = $2 WHERE document_id = $1")).
		WithArgs("doc-1", types.JSONText(`[1,2]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdateProgress(context.Background(), "doc-1", types.JSONText(`[1,2]`))
	require.NoError(t, err)
	assert.True(t, updated)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_locks SET completed_paragraphs = $2 WHERE document_id = $1")).
		WithArgs("doc-none", types.JSONText(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = repo.UpdateProgress(context.Background(), "doc-none", types.JSONText(`[]`))
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestLockRepositoryDeleteByOwner(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_locks WHERE document_id = $1 AND locked_by = $2")).
		WithArgs("doc-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteByOwner(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_locks WHERE document_id = $1 AND locked_by = $2")).
		WithArgs("doc-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteByOwner(context.Background(), "doc-1", "intruder")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLockRepositoryDeleteByDocumentID(t *testing.T) {
	db, mock, cleanup := newLockMock(t)
	defer cleanup()
	repo := NewLockRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_locks WHERE document_id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteByDocumentID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
