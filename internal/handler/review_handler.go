package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/transflow/transflow-api/internal/middleware"
	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/internal/service"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
	"github.com/transflow/transflow-api/pkg/response"
)

// ReviewHandler exposes the review workflow endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// List godoc
// @Summary List reviews
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param documentId query string false "Filter by document"
// @Param versionId query string false "Filter by version"
// @Param reviewerId query string false "Filter by reviewer"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	var filter models.ReviewFilter
	filter.DocumentID = c.Query("documentId")
	filter.VersionID = c.Query("versionId")
	filter.ReviewerID = c.Query("reviewerId")
	filter.Status = models.ReviewStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	reviews, pagination, err := h.reviews.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, pagination)
}

// Get godoc
// @Summary Get review detail
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id} [get]
func (h *ReviewHandler) Get(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Create godoc
// @Summary Open a review for a document version
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// Update godoc
// @Summary Edit a pending review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Param payload body models.UpdateReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	review, err := h.reviews.Update(c.Request.Context(), c.Param("id"), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Approve godoc
// @Summary Approve a pending review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Param payload body models.ReviewDecisionRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	h.decide(c, h.reviews.Approve)
}

// Reject godoc
// @Summary Reject a pending review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Param payload body models.ReviewDecisionRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	h.decide(c, h.reviews.Reject)
}

// Publish godoc
// @Summary Publish an approved review
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id}/publish [post]
func (h *ReviewHandler) Publish(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	review, err := h.reviews.Publish(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

func (h *ReviewHandler) decide(c *gin.Context, fn func(ctx context.Context, id string, req *models.ReviewDecisionRequest, userID string) (*models.Review, error)) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ReviewDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
			return
		}
	}

	review, err := fn(c.Request.Context(), c.Param("id"), &req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}
