package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/transflow/transflow-api/internal/models"
)

// ReviewRepository persists review records. The reviews table carries a
// UNIQUE constraint on (document_id, version_id).
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A duplicate (document, version) pair surfaces as
// a unique-constraint violation, returned unwrapped for classification.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	const query = `INSERT INTO reviews (id, document_id, version_id, reviewer_id, status, comment, created_at, updated_at)
		VALUES (:id, :document_id, :version_id, :reviewer_id, :status, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return err
	}
	return nil
}

// FindByID returns a review by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	const query = `SELECT id, document_id, version_id, reviewer_id, status, comment, created_at, updated_at FROM reviews WHERE id = $1 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by id: %w", err)
	}
	return &review, nil
}

// FindByDocumentVersion returns the review for a (document, version) pair,
// or sql.ErrNoRows when none exists.
func (r *ReviewRepository) FindByDocumentVersion(ctx context.Context, documentID, versionID string) (*models.Review, error) {
	const query = `SELECT id, document_id, version_id, reviewer_id, status, comment, created_at, updated_at FROM reviews WHERE document_id = $1 AND version_id = $2 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, documentID, versionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review by document version: %w", err)
	}
	return &review, nil
}

// FindDetailByID returns a review joined with reviewer and document title.
func (r *ReviewRepository) FindDetailByID(ctx context.Context, id string) (*models.ReviewDetail, error) {
	const query = `SELECT r.id, r.document_id, r.version_id, r.reviewer_id, r.status, r.comment, r.created_at, r.updated_at,
			u.full_name AS reviewer_name, d.title AS document_title
		FROM reviews r
		JOIN users u ON u.id = r.reviewer_id
		JOIN documents d ON d.id = r.document_id
		WHERE r.id = $1`
	var detail models.ReviewDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review detail: %w", err)
	}
	return &detail, nil
}

// UpdateStatus advances the review status, guarded by the expected current
// status. Reports whether the transition applied; a false return means the
// review moved on concurrently or never held the expected status.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error) {
	const query = `UPDATE reviews SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update review status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update review status: %w", err)
	}
	return affected > 0, nil
}

// UpdateComment edits a pending review's comment. Reports whether the
// review was still PENDING.
func (r *ReviewRepository) UpdateComment(ctx context.Context, id string, comment *string) (bool, error) {
	const query = `UPDATE reviews SET comment = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, comment, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update review comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update review comment: %w", err)
	}
	return affected > 0, nil
}

// List returns reviews based on filters with total count.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, int, error) {
	baseQuery := `FROM reviews r
		JOIN users u ON u.id = r.reviewer_id
		JOIN documents d ON d.id = r.document_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DocumentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.document_id = $%d", len(args)+1))
		args = append(args, filter.DocumentID)
	}
	if filter.VersionID != "" {
		conditions = append(conditions, fmt.Sprintf("r.version_id = $%d", len(args)+1))
		args = append(args, filter.VersionID)
	}
	if filter.ReviewerID != "" {
		conditions = append(conditions, fmt.Sprintf("r.reviewer_id = $%d", len(args)+1))
		args = append(args, filter.ReviewerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	countQuery := `SELECT COUNT(*) ` + baseQuery
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT r.id, r.document_id, r.version_id, r.reviewer_id, r.status, r.comment, r.created_at, r.updated_at,
			u.full_name AS reviewer_name, d.title AS document_title
		%s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`, baseQuery, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}
