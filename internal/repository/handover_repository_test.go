package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
)

func newHandoverMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestHandoverRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newHandoverMock(t)
	defer cleanup()
	repo := NewHandoverRepository(db)

	mock.ExpectExec("INSERT INTO handover_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.HandoverEvent{DocumentID: "doc-1", HandedOverBy: "user-1", Memo: "stopped at section 3"}
	err := repo.Create(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, "[]", string(event.CompletedParagraphs))
}

func TestHandoverRepositoryListByDocument(t *testing.T) {
	db, mock, cleanup := newHandoverMock(t)
	defer cleanup()
	repo := NewHandoverRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "handed_over_by", "memo", "terms", "completed_paragraphs", "created_at", "actor_name", "actor_email"}).
		AddRow("h-2", "doc-1", "user-2", "newer entry", nil, `[4,5]`, now, "Park Seoyeon", "seoyeon@example.com").
		AddRow("h-1", "doc-1", "user-1", "older entry", nil, `[1]`, now.Add(-time.Hour), "Kim Minjun", "minjun@example.com")
	mock.ExpectQuery("SELECT h.id, h.document_id.+ORDER BY h.created_at DESC").
		WithArgs("doc-1").
		WillReturnRows(rows)

	events, err := repo.ListByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "h-2", events[0].ID)
	assert.Equal(t, "newer entry", events[0].Memo)
}

func TestHandoverRepositoryFindLatestNoRows(t *testing.T) {
	db, mock, cleanup := newHandoverMock(t)
	defer cleanup()
	repo := NewHandoverRepository(db)

	mock.ExpectQuery("SELECT h.id, h.document_id.+LIMIT 1").
		WithArgs("doc-untouched").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLatestByDocument(context.Background(), "doc-untouched")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
