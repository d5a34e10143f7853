package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/transflow/transflow-api/internal/models"
)

// LockRepository persists document work locks. The document_locks table
// carries a UNIQUE constraint on document_id; every method here assumes
// that constraint exists and lets it arbitrate concurrent creates.
type LockRepository struct {
	db *sqlx.DB
}

// NewLockRepository constructs the repository.
func NewLockRepository(db *sqlx.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Create inserts a new lock row. A unique-constraint violation is returned
// unwrapped so the service layer can classify it with IsUniqueViolation.
func (r *LockRepository) Create(ctx context.Context, lock *models.DocumentLock) error {
	if lock.ID == "" {
		lock.ID = uuid.NewString()
	}
	if lock.LockedAt.IsZero() {
		lock.LockedAt = time.Now().UTC()
	}
	if len(lock.CompletedParagraphs) == 0 {
		lock.CompletedParagraphs = types.JSONText(`[]`)
	}

	const query = `INSERT INTO document_locks (id, document_id, locked_by, locked_at, handover_memo, completed_paragraphs)
		VALUES (:id, :document_id, :locked_by, :locked_at, :handover_memo, :completed_paragraphs)`
	if _, err := r.db.NamedExecContext(ctx, query, lock); err != nil {
		return err
	}
	return nil
}

// FindByDocumentID resolves the lock together with its owner and the
// document status in a single joined read. Returns sql.ErrNoRows when the
// document is unlocked.
func (r *LockRepository) FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error) {
	const query = `SELECT l.id, l.document_id, l.locked_by, l.locked_at, l.handover_memo, l.completed_paragraphs,
			u.full_name AS owner_name, u.email AS owner_email, d.status AS document_status
		FROM document_locks l
		JOIN users u ON u.id = l.locked_by
		JOIN documents d ON d.id = l.document_id
		WHERE l.document_id = $1`
	var lock models.DocumentLockDetail
	if err := r.db.GetContext(ctx, &lock, query, documentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lock by document: %w", err)
	}
	return &lock, nil
}

// UpdateProgress stores the completed-paragraph snapshot on the lock and
// reports whether a lock row existed.
func (r *LockRepository) UpdateProgress(ctx context.Context, documentID string, paragraphs types.JSONText) (bool, error) {
	const query = `UPDATE document_locks SET completed_paragraphs = $2 WHERE document_id = $1`
	res, err := r.db.ExecContext(ctx, query, documentID, paragraphs)
	if err != nil {
		return false, fmt.Errorf("update lock progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update lock progress: %w", err)
	}
	return affected > 0, nil
}

// UpdateMemo stores the in-flight handover memo on the lock.
func (r *LockRepository) UpdateMemo(ctx context.Context, documentID, memo string) error {
	const query = `UPDATE document_locks SET handover_memo = $2 WHERE document_id = $1`
	if _, err := r.db.ExecContext(ctx, query, documentID, memo); err != nil {
		return fmt.Errorf("update lock memo: %w", err)
	}
	return nil
}

// DeleteByOwner removes the lock only when held by the given user and
// reports whether a row was removed. Ownership is checked in the same
// statement so a concurrent transfer cannot slip between check and delete.
func (r *LockRepository) DeleteByOwner(ctx context.Context, documentID, userID string) (bool, error) {
	const query = `DELETE FROM document_locks WHERE document_id = $1 AND locked_by = $2`
	res, err := r.db.ExecContext(ctx, query, documentID, userID)
	if err != nil {
		return false, fmt.Errorf("delete lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete lock: %w", err)
	}
	return affected > 0, nil
}

// DeleteByDocumentID removes the lock unconditionally (admin reclaim).
func (r *LockRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	const query = `DELETE FROM document_locks WHERE document_id = $1`
	if _, err := r.db.ExecContext(ctx, query, documentID); err != nil {
		return fmt.Errorf("force delete lock: %w", err)
	}
	return nil
}
