package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transflow/transflow-api/internal/models"
)

func newReviewMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReviewRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").
		WillReturnResult(sqlmock.NewResult(1, 1))

	review := &models.Review{DocumentID: "doc-1", VersionID: "ver-1", ReviewerID: "rev-1", Status: models.ReviewPending}
	err := repo.Create(context.Background(), review)
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
}

func TestReviewRepositoryCreateDuplicatePassthrough(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_document_id_version_id_key"})

	err := repo.Create(context.Background(), &models.Review{DocumentID: "doc-1", VersionID: "ver-1", ReviewerID: "rev-1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestReviewRepositoryFindByDocumentVersion(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "version_id", "reviewer_id", "status", "comment", "created_at", "updated_at"}).
		AddRow("rev-1", "doc-1", "ver-1", "user-2", "PUBLISHED", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_id = $1 AND version_id = $2")).
		WithArgs("doc-1", "ver-1").
		WillReturnRows(rows)

	review, err := repo.FindByDocumentVersion(context.Background(), "doc-1", "ver-1")
	require.NoError(t, err)
	assert.Equal(t, "rev-1", review.ID)
	assert.Equal(t, models.ReviewPublished, review.Status)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_id = $1 AND version_id = $2")).
		WithArgs("doc-1", "ver-none").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByDocumentVersion(context.Background(), "doc-1", "ver-none")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReviewRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	guard := regexp.QuoteMeta("WHERE id = $1 AND status = $2")

	mock.ExpectExec("UPDATE reviews SET status = .+" + guard).
		WithArgs("rev-1", models.ReviewPending, models.ReviewApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.UpdateStatus(context.Background(), "rev-1", models.ReviewPending, models.ReviewApproved)
	require.NoError(t, err)
	assert.True(t, moved)

	mock.ExpectExec("UPDATE reviews SET status = .+" + guard).
		WithArgs("rev-1", models.ReviewPending, models.ReviewRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err = repo.UpdateStatus(context.Background(), "rev-1", models.ReviewPending, models.ReviewRejected)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestReviewRepositoryUpdateCommentPendingOnly(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	comment := "needs terminology fixes"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reviews SET comment = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'")).
		WithArgs("rev-1", &comment, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateComment(context.Background(), "rev-1", &comment)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestReviewRepositoryList(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reviews")).
		WithArgs("doc-1", models.ReviewPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "version_id", "reviewer_id", "status", "comment", "created_at", "updated_at", "reviewer_name", "document_title"}).
		AddRow("rev-1", "doc-1", "ver-1", "user-2", "PENDING", nil, now, now, "Lee Jiwoo", "Guide")
	mock.ExpectQuery("SELECT r.id, r.document_id.+ORDER BY r.created_at DESC").
		WithArgs("doc-1", models.ReviewPending, 20, 0).
		WillReturnRows(rows)

	reviews, total, err := repo.List(context.Background(), models.ReviewFilter{DocumentID: "doc-1", Status: models.ReviewPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Lee Jiwoo", reviews[0].ReviewerName)
}
