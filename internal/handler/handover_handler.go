package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transflow/transflow-api/internal/middleware"
	"github.com/transflow/transflow-api/internal/service"
	appErrors "github.com/transflow/transflow-api/pkg/errors"
	"github.com/transflow/transflow-api/pkg/response"
)

// HandoverHandler exposes read access to the handover ledger.
type HandoverHandler struct {
	handovers *service.HandoverService
}

// NewHandoverHandler constructs a handover handler.
func NewHandoverHandler(handovers *service.HandoverService) *HandoverHandler {
	return &HandoverHandler{handovers: handovers}
}

// History godoc
// @Summary Handover history for a document
// @Tags Handovers
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/handovers [get]
func (h *HandoverHandler) History(c *gin.Context) {
	events, err := h.handovers.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Latest godoc
// @Summary Most recent handover for a document
// @Tags Handovers
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/handovers/latest [get]
func (h *HandoverHandler) Latest(c *gin.Context) {
	event, err := h.handovers.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Mine godoc
// @Summary Handovers recorded by the current user
// @Tags Handovers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /handovers/mine [get]
func (h *HandoverHandler) Mine(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.handovers.ByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Export godoc
// @Summary Export handover history
// @Tags Handovers
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /documents/{id}/handovers/export [get]
func (h *HandoverHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	payload, contentType, err := h.handovers.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("handover-history.%s", format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
