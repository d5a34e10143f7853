package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/transflow/transflow-api/internal/models"
)

// VersionRepository persists document content versions.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create appends a new version row.
func (r *VersionRepository) Create(ctx context.Context, version *models.DocumentVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO document_versions (id, document_id, version_type, content, is_final, created_by, created_at)
		VALUES (:id, :document_id, :version_type, :content, :is_final, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

// FindByID returns a version by identifier.
func (r *VersionRepository) FindByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	const query = `SELECT id, document_id, version_type, content, is_final, created_by, created_at FROM document_versions WHERE id = $1 LIMIT 1`
	var version models.DocumentVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find version by id: %w", err)
	}
	return &version, nil
}

// ListByDocument returns all versions of a document, newest first.
func (r *VersionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	const query = `SELECT id, document_id, version_type, content, is_final, created_by, created_at
		FROM document_versions WHERE document_id = $1 ORDER BY created_at DESC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// MarkFinal flags a version as the published final content.
func (r *VersionRepository) MarkFinal(ctx context.Context, id string) error {
	const query = `UPDATE document_versions SET is_final = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark version final: %w", err)
	}
	return nil
}
