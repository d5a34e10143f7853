package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transflow/transflow-api/internal/middleware"
	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/internal/service"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
	"github.com/transflow/transflow-api/pkg/response"
)

// LockHandler exposes the document work-lock endpoints.
type LockHandler struct {
	locks    *service.LockService
	workflow *service.WorkflowService
}

// NewLockHandler constructs a lock handler.
func NewLockHandler(locks *service.LockService, workflow *service.WorkflowService) *LockHandler {
	return &LockHandler{locks: locks, workflow: workflow}
}

// Acquire godoc
// @Summary Acquire the work lock on a document
// @Tags Locks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/lock [post]
func (h *LockHandler) Acquire(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lock, err := h.locks.Acquire(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lock, nil)
}

// Status godoc
// @Summary Poll lock status
// @Description Returns the current lock view. Never fails; unknown or
// @Description unreadable state degrades to an unlocked view.
// @Tags Locks
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/lock-status [get]
func (h *LockHandler) Status(c *gin.Context) {
	callerID := ""
	if claims, ok := middleware.CurrentUser(c); ok {
		callerID = claims.UserID
	}
	status := h.locks.GetStatus(c.Request.Context(), c.Param("id"), callerID)
	response.JSON(c, http.StatusOK, status, nil)
}

// Release godoc
// @Summary Release the work lock and requeue the document
// @Tags Locks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id}/lock [delete]
func (h *LockHandler) Release(c *gin.Context) {
	userID := ""
	if claims, ok := middleware.CurrentUser(c); ok {
		userID = claims.UserID
	}

	if err := h.workflow.ReleaseForRework(c.Request.Context(), c.Param("id"), userID, false); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ForceRelease godoc
// @Summary Force release a lock (admin)
// @Tags Locks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Router /admin/documents/{id}/lock [delete]
func (h *LockHandler) ForceRelease(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !claims.Role.IsAdminOrAbove() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	if err := h.workflow.ReleaseForRework(c.Request.Context(), c.Param("id"), claims.UserID, true); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SaveProgress godoc
// @Summary Autosave completed paragraphs
// @Description Stores a progress snapshot on the lock. Saving without a
// @Description lock is accepted and dropped so autosave never errors out.
// @Tags Locks
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body models.SaveProgressRequest true "Progress snapshot"
// @Success 204
// @Router /documents/{id}/progress [put]
func (h *LockHandler) SaveProgress(c *gin.Context) {
	var req models.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.workflow.SaveProgress(c.Request.Context(), c.Param("id"), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Handover godoc
// @Summary Hand over unfinished work
// @Tags Locks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body models.HandoverRequest true "Handover payload"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/handover [post]
func (h *LockHandler) Handover(c *gin.Context) {
	userID := ""
	if claims, ok := middleware.CurrentUser(c); ok {
		userID = claims.UserID
	}

	var req models.HandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	event, err := h.workflow.Handover(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// CompleteTranslation godoc
// @Summary Complete the translation pass
// @Tags Locks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body models.CompleteTranslationRequest true "Completion payload"
// @Success 201 {object} response.Envelope
// @Router /documents/{id}/complete [post]
func (h *LockHandler) CompleteTranslation(c *gin.Context) {
	userID := ""
	if claims, ok := middleware.CurrentUser(c); ok {
		userID = claims.UserID
	}

	var req models.CompleteTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	version, err := h.workflow.CompleteTranslation(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}
