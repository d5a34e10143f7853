package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/internal/repository"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

type lockRepository interface {
	Create(ctx context.Context, lock *models.DocumentLock) error
	FindByDocumentID(ctx context.Context, documentID string) (*models.DocumentLockDetail, error)
	UpdateProgress(ctx context.Context, documentID string, paragraphs types.JSONText) (bool, error)
	UpdateMemo(ctx context.Context, documentID, memo string) error
	DeleteByOwner(ctx context.Context, documentID, userID string) (bool, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

type lockDocumentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, modifiedBy *string) (bool, error)
}

type lockUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type lockStatusCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LockService grants at-most-one-concurrent-editor access to documents.
// The storage uniqueness constraint on document_id is the race arbiter;
// this service only classifies its verdicts.
type LockService struct {
	locks     lockRepository
	documents lockDocumentRepository
	users     lockUserReader
	cache     lockStatusCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	audit     *AuditService
	logger    *zap.Logger
}

// NewLockService constructs LockService. cache, metrics and audit may be nil.
func NewLockService(locks lockRepository, documents lockDocumentRepository, users lockUserReader, cache lockStatusCache, cacheTTL time.Duration, metrics *MetricsService, audit *AuditService, logger *zap.Logger) *LockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	return &LockService{locks: locks, documents: documents, users: users, cache: cache, cacheTTL: cacheTTL, metrics: metrics, audit: audit, logger: logger}
}

func lockStatusCacheKey(documentID string) string {
	return "lock-status:" + documentID
}

// Acquire claims the work lock on a document for a user. Acquisition is
// re-entrant: the owner re-acquiring gets the existing lock back unchanged.
// When two acquisitions race, the storage constraint lets exactly one
// create succeed; the loser re-reads once and is classified as idempotent
// success or conflict.
func (s *LockService) Acquire(ctx context.Context, documentID, userID string) (*models.DocumentLockDetail, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	// Fast path: an existing lock settles ownership without a write.
	existing, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read lock")
	}
	if existing != nil {
		if existing.LockedBy == userID {
			s.observeAcquire("idempotent")
			return existing, nil
		}
		s.observeAcquire("conflict")
		return nil, appErrors.Clone(appErrors.ErrLockHeld, fmt.Sprintf("document is being edited by %s", existing.OwnerName))
	}

	if !models.CanTransition(doc.Status, models.StatusInTranslation) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("document in status %s cannot enter translation", doc.Status))
	}

	lock := &models.DocumentLock{DocumentID: documentID, LockedBy: userID}
	if err := s.locks.Create(ctx, lock); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.resolveAcquireCollision(ctx, documentID, userID)
		}
		if repository.IsTransient(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "lock creation interrupted, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lock")
	}

	moved, err := s.documents.UpdateStatus(ctx, documentID, doc.Status, models.StatusInTranslation, &userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document status")
	}
	if !moved {
		s.logger.Warn("document status moved concurrently during acquire",
			zap.String("document_id", documentID), zap.String("expected", string(doc.Status)))
	}

	s.invalidateStatus(ctx, documentID)
	s.observeAcquire("acquired")
	s.recordAudit(userID, models.AuditActionLockAcquired, documentID, nil)
	s.logger.Info("lock acquired", zap.String("document_id", documentID), zap.String("user_id", userID))

	return &models.DocumentLockDetail{
		DocumentLock:   *lock,
		OwnerName:      user.FullName,
		OwnerEmail:     user.Email,
		DocumentStatus: models.StatusInTranslation,
	}, nil
}

// resolveAcquireCollision performs the single detect-and-requery cycle after
// a unique-constraint violation: the surviving lock decides the outcome.
func (s *LockService) resolveAcquireCollision(ctx context.Context, documentID, userID string) (*models.DocumentLockDetail, error) {
	winner, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Winner released between our insert and re-read; tell the
			// caller to retry rather than looping internally.
			return nil, appErrors.Clone(appErrors.ErrTransient, "lock contention, retry acquisition")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-read lock after collision")
	}
	if winner.LockedBy == userID {
		s.observeAcquire("idempotent")
		return winner, nil
	}
	s.observeAcquire("conflict")
	return nil, appErrors.Clone(appErrors.ErrLockHeld, fmt.Sprintf("document is being edited by %s", winner.OwnerName))
}

// Release removes the lock. Releasing an unlocked document is a no-op
// success. Admin releases are unconditional; otherwise only the owner may
// release. Release never drives the document lifecycle: the caller decides
// which follow-on transition applies.
func (s *LockService) Release(ctx context.Context, documentID, userID string, admin bool) error {
	if admin {
		if err := s.locks.DeleteByDocumentID(ctx, documentID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to force release lock")
		}
		s.invalidateStatus(ctx, documentID)
		s.recordAudit(userID, models.AuditActionLockForceRelease, documentID, nil)
		s.logger.Info("lock force released", zap.String("document_id", documentID), zap.String("admin_id", userID))
		return nil
	}

	lock, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("release on unlocked document", zap.String("document_id", documentID))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read lock")
	}
	if lock.LockedBy != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "lock is held by another user")
	}

	deleted, err := s.locks.DeleteByOwner(ctx, documentID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release lock")
	}
	if !deleted {
		// The row changed between read and delete: either already released
		// (fine) or transferred to someone else (forbidden).
		current, err := s.locks.FindByDocumentID(ctx, documentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-read lock")
		}
		if current.LockedBy != userID {
			return appErrors.Clone(appErrors.ErrForbidden, "lock is held by another user")
		}
		return nil
	}

	s.invalidateStatus(ctx, documentID)
	s.recordAudit(userID, models.AuditActionLockReleased, documentID, nil)
	s.logger.Info("lock released", zap.String("document_id", documentID), zap.String("user_id", userID))
	return nil
}

// SaveProgress stores an autosave snapshot of completed paragraphs on the
// lock. Ownership is deliberately not verified so a stale owner check can
// never block an autosave; saving without a lock is a logged no-op.
func (s *LockService) SaveProgress(ctx context.Context, documentID string, paragraphs []int) error {
	encoded, err := models.EncodeParagraphs(paragraphs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode progress snapshot")
	}
	updated, err := s.locks.UpdateProgress(ctx, documentID, encoded)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save progress")
	}
	if !updated {
		s.logger.Warn("progress save without a lock, snapshot dropped", zap.String("document_id", documentID))
		return nil
	}
	s.invalidateStatus(ctx, documentID)
	return nil
}

// GetStatus returns the read-only lock view for status polling. It never
// fails the caller: lookup errors degrade to an unlocked view so polling
// stays available even over corrupted data.
func (s *LockService) GetStatus(ctx context.Context, documentID, callerID string) *models.LockStatus {
	if s.cache != nil && callerID == "" {
		var cached models.LockStatus
		if err := s.cache.Get(ctx, lockStatusCacheKey(documentID), &cached); err == nil {
			return &cached
		}
	}

	lock, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("lock status lookup failed, degrading to unlocked",
				zap.String("document_id", documentID), zap.Error(err))
		}
		return models.UnlockedStatus()
	}

	status := &models.LockStatus{
		Locked: true,
		LockedBy: &models.LockOwnerInfo{
			ID:    lock.LockedBy,
			Name:  lock.OwnerName,
			Email: lock.OwnerEmail,
		},
		LockedAt:            &lock.LockedAt,
		CanEdit:             callerID != "" && lock.LockedBy == callerID,
		CompletedParagraphs: lock.Paragraphs(),
	}

	if s.cache != nil && callerID == "" {
		if err := s.cache.Set(ctx, lockStatusCacheKey(documentID), status, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache lock status", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	return status
}

// IsLockedBy reports whether the document lock is currently held by the
// given user. Lookup failures report false.
func (s *LockService) IsLockedBy(ctx context.Context, documentID, userID string) bool {
	lock, err := s.locks.FindByDocumentID(ctx, documentID)
	if err != nil {
		return false
	}
	return lock.LockedBy == userID
}

func (s *LockService) invalidateStatus(ctx context.Context, documentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, lockStatusCacheKey(documentID)); err != nil {
		s.logger.Warn("failed to invalidate lock status cache", zap.String("document_id", documentID), zap.Error(err))
	}
}

func (s *LockService) observeAcquire(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLockAcquire(outcome)
	}
}

func (s *LockService) recordAudit(userID, action, documentID string, payload []byte) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "document_lock",
		ResourceID: &documentID,
		NewValues:  payload,
	})
}
