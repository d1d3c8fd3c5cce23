package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edtsync/edt-sync-api/internal/service"
	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/response"
)

// SupervisionHandler manages supervision duty endpoints.
type SupervisionHandler struct {
	service *service.SupervisionService
}

// NewSupervisionHandler constructs handler.
func NewSupervisionHandler(svc *service.SupervisionService) *SupervisionHandler {
	return &SupervisionHandler{service: svc}
}

// Create assigns a duty.
func (h *SupervisionHandler) Create(c *gin.Context) {
	var req service.SupervisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Delete removes a duty.
func (h *SupervisionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
