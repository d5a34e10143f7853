package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
)

func newDocumentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows(id string, status models.DocumentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "title", "original_url", "source_lang", "target_lang", "category_id", "status", "current_version_id", "estimated_length", "created_by", "last_modified_by", "created_at", "updated_at"}).
		AddRow(id, "Guide", "https://example.com/guide", "en", "ko", nil, status, nil, nil, "user-1", nil, now, now)
}

func TestDocumentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery("SELECT id, title, original_url").
		WithArgs("doc-1").
		WillReturnRows(documentRows("doc-1", models.StatusDraft))

	doc, err := repo.FindByID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, models.StatusDraft, doc.Status)
}

func TestDocumentRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery("SELECT id, title, original_url").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDocumentRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	guard := regexp.QuoteMeta("WHERE id = $1 AND status = $2")

	mock.ExpectExec("UPDATE documents SET status = .+" + guard).
		WithArgs("doc-1", models.StatusPendingTranslation, models.StatusInTranslation, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	actor := "user-1"
	moved, err := repo.UpdateStatus(context.Background(), "doc-1", models.StatusPendingTranslation, models.StatusInTranslation, &actor)
	require.NoError(t, err)
	assert.True(t, moved)

	// A concurrent transition makes the guard miss.
	mock.ExpectExec("UPDATE documents SET status = .+" + guard).
		WithArgs("doc-1", models.StatusPendingTranslation, models.StatusInTranslation, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err = repo.UpdateStatus(context.Background(), "doc-1", models.StatusPendingTranslation, models.StatusInTranslation, &actor)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestDocumentRepositoryList(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE 1=1 AND status = $1")).
		WithArgs(models.StatusPendingTranslation).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT id, title, original_url.+ORDER BY created_at DESC").
		WithArgs(models.StatusPendingTranslation, 20, 0).
		WillReturnRows(documentRows("doc-1", models.StatusPendingTranslation))

	docs, total, err := repo.List(context.Background(), models.DocumentFilter{Status: models.StatusPendingTranslation})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
}

func TestDocumentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("INSERT INTO documents").
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{Title: "Guide", SourceLang: "en", TargetLang: "ko", Status: models.StatusDraft, CreatedBy: "user-1"}
	err := repo.Create(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())
}
