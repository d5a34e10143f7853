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

type workflowUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindDefaultActor(ctx context.Context) (*models.User, error)
}

type workflowDocumentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, modifiedBy *string) (bool, error)
	SetCurrentVersion(ctx context.Context, id, versionID string) error
}

type versionRepository interface {
	Create(ctx context.Context, version *models.DocumentVersion) error
	FindByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	MarkFinal(ctx context.Context, id string) error
}

// WorkflowService coordinates the multi-step translation operations that
// touch locks, versions, the ledger and the document lifecycle together.
type WorkflowService struct {
	locks          lockRepository
	lockSvc        *LockService
	documents      workflowDocumentRepository
	versions       versionRepository
	users          workflowUserReader
	handovers      *HandoverService
	audit          *AuditService
	metrics        *MetricsService
	validate       *validator.Validate
	allowAnonymous bool
	logger         *zap.Logger
}

// NewWorkflowService constructs WorkflowService. audit and metrics may be
// nil. allowAnonymous enables the development-only default-actor fallback
// and must never be set in production.
func NewWorkflowService(locks lockRepository, lockSvc *LockService, documents workflowDocumentRepository, versions versionRepository, users workflowUserReader, handovers *HandoverService, audit *AuditService, metrics *MetricsService, validate *validator.Validate, allowAnonymous bool, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		locks:          locks,
		lockSvc:        lockSvc,
		documents:      documents,
		versions:       versions,
		users:          users,
		handovers:      handovers,
		audit:          audit,
		metrics:        metrics,
		validate:       validate,
		allowAnonymous: allowAnonymous,
		logger:         logger,
	}
}

// resolveActor maps the caller to a user record. An empty userID is only
// acceptable when the anonymous fallback is enabled, in which case the
// highest-privileged active user stands in.
func (s *WorkflowService) resolveActor(ctx context.Context, userID string) (*models.User, bool, error) {
	if userID != "" {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		return user, false, nil
	}
	if !s.allowAnonymous {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	user, err := s.users.FindDefaultActor(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "no fallback actor available")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve fallback actor")
	}
	s.logger.Warn("anonymous caller resolved to fallback actor", zap.String("actor_id", user.ID))
	return user, true, nil
}

// Handover records a ledger entry with the outgoing editor's memo, releases
// the lock and puts the document back in the translation queue.
func (s *WorkflowService) Handover(ctx context.Context, documentID, userID string, req *models.HandoverRequest) (*models.HandoverEvent, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid handover payload")
	}

	actor, anonymous, err := s.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	lock, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read lock")
	}
	if lock != nil && lock.LockedBy != actor.ID && !anonymous {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lock is held by another user")
	}
	if lock == nil && !anonymous {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document is not locked, nothing to hand over")
	}

	paragraphs := req.CompletedParagraphs
	if len(paragraphs) == 0 && lock != nil {
		paragraphs = lock.Paragraphs()
	}
	encoded, err := models.EncodeParagraphs(paragraphs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode progress snapshot")
	}

	if lock != nil {
		// Park the memo on the lock row first so it survives a failure
		// between ledger write and release.
		if err := s.locks.UpdateMemo(ctx, documentID, req.Memo); err != nil {
			s.logger.Warn("failed to stage handover memo on lock",
				zap.String("document_id", documentID), zap.Error(err))
		}
	}

	event := &models.HandoverEvent{
		DocumentID:          documentID,
		HandedOverBy:        actor.ID,
		Memo:                req.Memo,
		Terms:               req.Terms,
		CompletedParagraphs: encoded,
	}
	if err := s.handovers.Record(ctx, event); err != nil {
		return nil, err
	}

	if lock != nil {
		if err := s.lockSvc.Release(ctx, documentID, lock.LockedBy, false); err != nil {
			return nil, err
		}
	}
	s.requeueForTranslation(ctx, documentID, actor.ID)
	s.recordAudit(actor.ID, models.AuditActionHandover, documentID)
	return event, nil
}

// CompleteTranslation stores the translated content as a new version,
// releases the lock and submits the document for review.
func (s *WorkflowService) CompleteTranslation(ctx context.Context, documentID, userID string, req *models.CompleteTranslationRequest) (*models.DocumentVersion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	actor, _, err := s.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	lock, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "document is not locked, acquire the lock before completing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read lock")
	}
	if lock.LockedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lock is held by another user")
	}

	if len(req.CompletedParagraphs) > 0 {
		// The final snapshot lands on the lock row before release so it is
		// not lost if the operation fails partway.
		if err := s.lockSvc.SaveProgress(ctx, documentID, req.CompletedParagraphs); err != nil {
			s.logger.Warn("failed to store final progress snapshot",
				zap.String("document_id", documentID), zap.Error(err))
		}
	}

	version := &models.DocumentVersion{
		DocumentID:  documentID,
		VersionType: models.VersionManualTranslation,
		Content:     req.Content,
		CreatedBy:   actor.ID,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store translation version")
	}
	if err := s.documents.SetCurrentVersion(ctx, documentID, version.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to point document at new version")
	}

	if err := s.lockSvc.Release(ctx, documentID, actor.ID, false); err != nil {
		return nil, err
	}

	moved, err := s.documents.UpdateStatus(ctx, documentID, models.StatusInTranslation, models.StatusPendingReview, &actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit document for review")
	}
	if !moved {
		s.logger.Warn("document was not in translation when completing",
			zap.String("document_id", documentID))
	} else if s.metrics != nil {
		s.metrics.ObserveTransition(string(models.StatusPendingReview))
	}

	s.recordAudit(actor.ID, models.AuditActionTranslationDone, documentID)
	s.logger.Info("translation completed",
		zap.String("document_id", documentID), zap.String("version_id", version.ID), zap.String("user_id", actor.ID))
	return version, nil
}

// ReleaseForRework releases the lock and returns the document to the
// translation queue without recording a handover. Admin releases reclaim
// locks unconditionally.
func (s *WorkflowService) ReleaseForRework(ctx context.Context, documentID, userID string, admin bool) error {
	actor, _, err := s.resolveActor(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.lockSvc.Release(ctx, documentID, actor.ID, admin); err != nil {
		return err
	}
	s.requeueForTranslation(ctx, documentID, actor.ID)
	return nil
}

// SaveProgress validates and stores an autosave snapshot.
func (s *WorkflowService) SaveProgress(ctx context.Context, documentID string, req *models.SaveProgressRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	return s.lockSvc.SaveProgress(ctx, documentID, req.CompletedParagraphs)
}

// CreateVersion appends an arbitrary content version, used for uploading
// originals and AI drafts.
func (s *WorkflowService) CreateVersion(ctx context.Context, documentID, userID string, req *models.CreateVersionRequest) (*models.DocumentVersion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid version payload")
	}
	if !req.VersionType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown version type %q", req.VersionType))
	}

	actor, _, err := s.resolveActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.documents.FindByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	version := &models.DocumentVersion{
		DocumentID:  documentID,
		VersionType: req.VersionType,
		Content:     req.Content,
		CreatedBy:   actor.ID,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store version")
	}
	if err := s.documents.SetCurrentVersion(ctx, documentID, version.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to point document at new version")
	}
	return version, nil
}

// ListVersions returns all content versions of a document, newest first.
func (s *WorkflowService) ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	if _, err := s.documents.FindByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	versions, err := s.versions.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	if versions == nil {
		versions = []models.DocumentVersion{}
	}
	return versions, nil
}

// requeueForTranslation applies the IN_TRANSLATION -> PENDING_TRANSLATION
// edge if it is still applicable; a concurrent move wins silently.
func (s *WorkflowService) requeueForTranslation(ctx context.Context, documentID, actorID string) {
	moved, err := s.documents.UpdateStatus(ctx, documentID, models.StatusInTranslation, models.StatusPendingTranslation, &actorID)
	if err != nil {
		s.logger.Error("failed to requeue document for translation",
			zap.String("document_id", documentID), zap.Error(err))
		return
	}
	if moved && s.metrics != nil {
		s.metrics.ObserveTransition(string(models.StatusPendingTranslation))
	}
}

func (s *WorkflowService) recordAudit(userID, action, documentID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "document",
		ResourceID: &documentID,
	})
}
