package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/internal/repository"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	FindByDocumentVersion(ctx context.Context, documentID, versionID string) (*models.Review, error)
	FindDetailByID(ctx context.Context, id string) (*models.ReviewDetail, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error)
	UpdateComment(ctx context.Context, id string, comment *string) (bool, error)
	List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, int, error)
}

// ReviewService manages review records and drives the document lifecycle
// through review decisions.
type ReviewService struct {
	reviews   reviewRepository
	documents workflowDocumentRepository
	versions  versionRepository
	audit     *AuditService
	metrics   *MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs ReviewService. audit and metrics may be nil.
func NewReviewService(reviews reviewRepository, documents workflowDocumentRepository, versions versionRepository, audit *AuditService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		reviews:   reviews,
		documents: documents,
		versions:  versions,
		audit:     audit,
		metrics:   metrics,
		validate:  validate,
		logger:    logger,
	}
}

// Create opens a review for a document version. The storage uniqueness
// constraint on (document, version) guarantees at most one review per pair
// even under concurrent creates.
func (s *ReviewService) Create(ctx context.Context, req *models.CreateReviewRequest, reviewerID string) (*models.Review, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	doc, err := s.documents.FindByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	// A repeat create for the same pair answers with the duplicate conflict
	// no matter where the document has moved since the first review.
	existing, err := s.reviews.FindByDocumentVersion(ctx, req.DocumentID, req.VersionID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateReview, "a review already exists for this document version")
	}

	if doc.Status != models.StatusPendingReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("document in status %s is not awaiting review", doc.Status))
	}

	version, err := s.versions.FindByID(ctx, req.VersionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	if version.DocumentID != req.DocumentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version does not belong to this document")
	}

	review := &models.Review{
		DocumentID: req.DocumentID,
		VersionID:  req.VersionID,
		ReviewerID: reviewerID,
		Status:     models.ReviewPending,
		Comment:    req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateReview, "a review already exists for this document version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}

	s.recordAudit(reviewerID, models.AuditActionReviewCreated, review.ID)
	s.logger.Info("review created",
		zap.String("review_id", review.ID), zap.String("document_id", req.DocumentID), zap.String("version_id", req.VersionID))
	return review, nil
}

// Get returns a review with reviewer and document details.
func (s *ReviewService) Get(ctx context.Context, id string) (*models.ReviewDetail, error) {
	detail, err := s.reviews.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return detail, nil
}

// List returns reviews matching the filter with pagination info.
func (s *ReviewService) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, *models.Pagination, error) {
	reviews, total, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return reviews, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update edits the comment of a review that is still PENDING. Only the
// assigned reviewer may edit.
func (s *ReviewService) Update(ctx context.Context, id string, req *models.UpdateReviewRequest, userID string) (*models.Review, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	review, err := s.loadReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.ReviewerID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned reviewer may edit this review")
	}
	if review.Status != models.ReviewPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("review in status %s can no longer be edited", review.Status))
	}

	updated, err := s.reviews.UpdateComment(ctx, id, req.Comment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "review advanced concurrently and can no longer be edited")
	}

	review.Comment = req.Comment
	return review, nil
}

// Approve marks a pending review approved and moves the document to
// APPROVED.
func (s *ReviewService) Approve(ctx context.Context, id string, req *models.ReviewDecisionRequest, userID string) (*models.Review, error) {
	return s.decide(ctx, id, req, userID, models.ReviewApproved)
}

// Reject marks a pending review rejected and sends the document back to the
// translation queue for rework.
func (s *ReviewService) Reject(ctx context.Context, id string, req *models.ReviewDecisionRequest, userID string) (*models.Review, error) {
	return s.decide(ctx, id, req, userID, models.ReviewRejected)
}

func (s *ReviewService) decide(ctx context.Context, id string, req *models.ReviewDecisionRequest, userID string, decision models.ReviewStatus) (*models.Review, error) {
	if req != nil {
		if err := s.validate.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
		}
	}

	review, err := s.loadReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanReviewTransition(review.Status, decision) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("review in status %s cannot be %s", review.Status, decision))
	}

	moved, err := s.reviews.UpdateStatus(ctx, id, review.Status, decision)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review status")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "review advanced concurrently, reload and retry")
	}

	if req != nil && req.Comment != nil {
		// Comment update is best effort once the decision has landed.
		if _, err := s.reviews.UpdateComment(ctx, id, req.Comment); err != nil {
			s.logger.Warn("failed to store decision comment", zap.String("review_id", id), zap.Error(err))
		}
		review.Comment = req.Comment
	}

	switch decision {
	case models.ReviewApproved:
		s.transitionDocument(ctx, review.DocumentID, models.StatusPendingReview, models.StatusApproved, userID)
		s.recordAudit(userID, models.AuditActionReviewApproved, id)
	case models.ReviewRejected:
		s.transitionDocument(ctx, review.DocumentID, models.StatusPendingReview, models.StatusPendingTranslation, userID)
		s.recordAudit(userID, models.AuditActionReviewRejected, id)
	}
	if s.metrics != nil {
		s.metrics.ObserveReviewDecision(string(decision))
	}

	review.Status = decision
	s.logger.Info("review decided",
		zap.String("review_id", id), zap.String("decision", string(decision)), zap.String("decided_by", userID))
	return review, nil
}

// Publish moves an approved review and its document to PUBLISHED and flags
// the reviewed version as final content.
func (s *ReviewService) Publish(ctx context.Context, id, userID string) (*models.Review, error) {
	review, err := s.loadReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanReviewTransition(review.Status, models.ReviewPublished) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("review in status %s cannot be published", review.Status))
	}

	moved, err := s.reviews.UpdateStatus(ctx, id, review.Status, models.ReviewPublished)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish review")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "review advanced concurrently, reload and retry")
	}

	if err := s.versions.MarkFinal(ctx, review.VersionID); err != nil {
		s.logger.Error("failed to flag final version",
			zap.String("review_id", id), zap.String("version_id", review.VersionID), zap.Error(err))
	}
	if err := s.documents.SetCurrentVersion(ctx, review.DocumentID, review.VersionID); err != nil {
		s.logger.Error("failed to point document at published version",
			zap.String("document_id", review.DocumentID), zap.Error(err))
	}

	s.transitionDocument(ctx, review.DocumentID, models.StatusApproved, models.StatusPublished, userID)
	s.recordAudit(userID, models.AuditActionReviewPublished, id)
	if s.metrics != nil {
		s.metrics.ObserveReviewDecision(string(models.ReviewPublished))
	}

	review.Status = models.ReviewPublished
	s.logger.Info("review published", zap.String("review_id", id), zap.String("document_id", review.DocumentID))
	return review, nil
}

func (s *ReviewService) loadReview(ctx context.Context, id string) (*models.Review, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// transitionDocument applies the follow-on document edge for a decision.
// A guard miss means another actor already moved the document; the review
// decision itself stands either way.
func (s *ReviewService) transitionDocument(ctx context.Context, documentID string, from, to models.DocumentStatus, actorID string) {
	moved, err := s.documents.UpdateStatus(ctx, documentID, from, to, &actorID)
	if err != nil {
		s.logger.Error("failed to transition document after review decision",
			zap.String("document_id", documentID), zap.String("to", string(to)), zap.Error(err))
		return
	}
	if !moved {
		s.logger.Warn("document not in expected status after review decision",
			zap.String("document_id", documentID), zap.String("expected", string(from)))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(to))
	}
}

func (s *ReviewService) recordAudit(userID, action, reviewID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "review",
		ResourceID: &reviewID,
	})
}
