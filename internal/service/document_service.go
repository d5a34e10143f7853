package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/transflow/transflow-api/internal/models"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

type documentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindDetailByID(ctx context.Context, id string) (*models.DocumentDetail, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, modifiedBy *string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type documentLockReader interface {
	FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error)
}

// DocumentService manages document records and their lifecycle status.
type DocumentService struct {
	documents documentRepository
	locks     documentLockReader
	metrics   *MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs DocumentService. metrics may be nil.
func NewDocumentService(documents documentRepository, locks documentLockReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{documents: documents, locks: locks, metrics: metrics, validate: validate, logger: logger}
}

// Create registers a new document in DRAFT.
func (s *DocumentService) Create(ctx context.Context, req *models.CreateDocumentRequest, createdBy string) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	doc := &models.Document{
		Title:           req.Title,
		OriginalURL:     req.OriginalURL,
		SourceLang:      req.SourceLang,
		TargetLang:      req.TargetLang,
		CategoryID:      req.CategoryID,
		EstimatedLength: req.EstimatedLength,
		Status:          models.StatusDraft,
		CreatedBy:       createdBy,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.logger.Info("document created", zap.String("document_id", doc.ID), zap.String("created_by", createdBy))
	return doc, nil
}

// Get returns a document with creator and modifier details.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.DocumentDetail, error) {
	detail, err := s.documents.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return detail, nil
}

// List returns documents matching the filter together with pagination info.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	docs, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return docs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update edits document metadata. Status changes go through Transition.
func (s *DocumentService) Update(ctx context.Context, id string, req *models.UpdateDocumentRequest, modifiedBy string) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.OriginalURL != nil {
		doc.OriginalURL = *req.OriginalURL
	}
	if req.CategoryID != nil {
		doc.CategoryID = req.CategoryID
	}
	if req.EstimatedLength != nil {
		doc.EstimatedLength = req.EstimatedLength
	}
	doc.LastModifiedBy = &modifiedBy

	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	return doc, nil
}

// Transition moves a document to the target status, enforcing the lifecycle
// edges. The status update is guarded by the status observed here, so a
// concurrent transition makes this one fail rather than double-apply.
func (s *DocumentService) Transition(ctx context.Context, id string, to models.DocumentStatus, actorID string) (*models.Document, error) {
	if !to.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document status %q", to))
	}

	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if !models.CanTransition(doc.Status, to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move document from %s to %s", doc.Status, to))
	}

	moved, err := s.documents.UpdateStatus(ctx, id, doc.Status, to, &actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document status")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document status changed concurrently, retry")
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(to))
	}
	s.logger.Info("document transitioned",
		zap.String("document_id", id), zap.String("from", string(doc.Status)), zap.String("to", string(to)))

	doc.Status = to
	doc.LastModifiedBy = &actorID
	return doc, nil
}

// MarkReadyForTranslation queues a DRAFT document for translators.
func (s *DocumentService) MarkReadyForTranslation(ctx context.Context, id, actorID string) (*models.Document, error) {
	return s.Transition(ctx, id, models.StatusPendingTranslation, actorID)
}

// Delete removes a document. Locked documents cannot be deleted.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.documents.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if s.locks != nil {
		lock, err := s.locks.FindByDocumentID(ctx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lock")
		}
		if lock != nil {
			return appErrors.Clone(appErrors.ErrLockHeld,
				fmt.Sprintf("document is being edited by %s", lock.OwnerName))
		}
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}
