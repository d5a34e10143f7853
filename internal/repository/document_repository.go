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

const documentColumns = `id, title, original_url, source_lang, target_lang, category_id, status, current_version_id, estimated_length, created_by, last_modified_by, created_at, updated_at`

// DocumentRepository provides database access for documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return &doc, nil
}

// FindDetailByID returns a document joined with creator and modifier info.
func (r *DocumentRepository) FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error) {
	const query = `SELECT d.id, d.title, d.original_url, d.source_lang, d.target_lang, d.category_id, d.status,
			d.current_version_id, d.estimated_length, d.created_by, d.last_modified_by, d.created_at, d.updated_at,
			c.full_name AS creator_name, c.email AS creator_email,
			m.full_name AS last_modifier_name, m.email AS last_modifier_email
		FROM documents d
		JOIN users c ON c.id = d.created_by
		LEFT JOIN users m ON m.id = d.last_modified_by
		WHERE d.id = $1`
	var detail models.DocumentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document detail: %w", err)
	}
	return &detail, nil
}

// List returns documents based on filters with total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	baseQuery := `FROM documents WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"title":      true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT `+documentColumns+` %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		baseQuery, sortBy, sortOrder, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO documents (id, title, original_url, source_lang, target_lang, category_id, status, current_version_id, estimated_length, created_by, last_modified_by, created_at, updated_at)
		VALUES (:id, :title, :original_url, :source_lang, :target_lang, :category_id, :status, :current_version_id, :estimated_length, :created_by, :last_modified_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a document.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents
		SET title = :title, original_url = :original_url, source_lang = :source_lang, target_lang = :target_lang,
		    category_id = :category_id, estimated_length = :estimated_length, last_modified_by = :last_modified_by,
		    updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// UpdateStatus moves the document to a new lifecycle status, guarded by the
// expected current status so concurrent transitions cannot double-apply.
// Reports whether the row matched.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, modifiedBy *string) (bool, error) {
	const query = `UPDATE documents SET status = $3, last_modified_by = COALESCE($4, last_modified_by), updated_at = $5
		WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, modifiedBy, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	return affected > 0, nil
}

// SetCurrentVersion points the document at its newest version.
func (r *DocumentRepository) SetCurrentVersion(ctx context.Context, id, versionID string) error {
	const query = `UPDATE documents SET current_version_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, versionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set current version: %w", err)
	}
	return nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
