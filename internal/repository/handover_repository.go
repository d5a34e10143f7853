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

// HandoverRepository persists the append-only handover ledger. There are no
// update or delete operations on purpose.
type HandoverRepository struct {
	db *sqlx.DB
}

// NewHandoverRepository constructs the repository.
func NewHandoverRepository(db *sqlx.DB) *HandoverRepository {
	return &HandoverRepository{db: db}
}

// Create appends a handover event.
func (r *HandoverRepository) Create(ctx context.Context, event *models.HandoverEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.CompletedParagraphs) == 0 {
		event.CompletedParagraphs = types.JSONText(`[]`)
	}

	const query = `INSERT INTO handover_events (id, document_id, handed_over_by, memo, terms, completed_paragraphs, created_at)
		VALUES (:id, :document_id, :handed_over_by, :memo, :terms, :completed_paragraphs, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create handover event: %w", err)
	}
	return nil
}

const handoverDetailColumns = `h.id, h.document_id, h.handed_over_by, h.memo, h.terms, h.completed_paragraphs, h.created_at,
	u.full_name AS actor_name, u.email AS actor_email`

// ListByDocument returns all events for a document, newest first.
func (r *HandoverRepository) ListByDocument(ctx context.Context, documentID string) ([]models.HandoverEventDetail, error) {
	const query = `SELECT ` + handoverDetailColumns + `
		FROM handover_events h
		JOIN users u ON u.id = h.handed_over_by
		WHERE h.document_id = $1
		ORDER BY h.created_at DESC`
	var events []models.HandoverEventDetail
	if err := r.db.SelectContext(ctx, &events, query, documentID); err != nil {
		return nil, fmt.Errorf("list handovers by document: %w", err)
	}
	return events, nil
}

// FindLatestByDocument returns the most recent event for a document.
func (r *HandoverRepository) FindLatestByDocument(ctx context.Context, documentID string) (*models.HandoverEventDetail, error) {
	const query = `SELECT ` + handoverDetailColumns + `
		FROM handover_events h
		JOIN users u ON u.id = h.handed_over_by
		WHERE h.document_id = $1
		ORDER BY h.created_at DESC
		LIMIT 1`
	var event models.HandoverEventDetail
	if err := r.db.GetContext(ctx, &event, query, documentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest handover: %w", err)
	}
	return &event, nil
}

// ListByUser returns all events recorded by a user, newest first.
func (r *HandoverRepository) ListByUser(ctx context.Context, userID string) ([]models.HandoverEventDetail, error) {
	const query = `SELECT ` + handoverDetailColumns + `
		FROM handover_events h
		JOIN users u ON u.id = h.handed_over_by
		WHERE h.handed_over_by = $1
		ORDER BY h.created_at DESC`
	var events []models.HandoverEventDetail
	if err := r.db.SelectContext(ctx, &events, query, userID); err != nil {
		return nil, fmt.Errorf("list handovers by user: %w", err)
	}
	return events, nil
}
