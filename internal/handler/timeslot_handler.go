package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edtsync/edt-sync-api/internal/repository"
	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/response"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// TimeSlotHandler serves and replaces the daily period reference data.
type TimeSlotHandler struct {
	repo *repository.TimeSlotRepository
}

// NewTimeSlotHandler constructs handler.
func NewTimeSlotHandler(repo *repository.TimeSlotRepository) *TimeSlotHandler {
	return &TimeSlotHandler{repo: repo}
}

// List returns the ordered slot set.
func (h *TimeSlotHandler) List(c *gin.Context) {
	sid := schoolID(c)
	if sid == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "school id is required"))
		return
	}

	slots, err := h.repo.List(c.Request.Context(), sid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Replace swaps the whole slot set.
func (h *TimeSlotHandler) Replace(c *gin.Context) {
	sid := schoolID(c)
	if sid == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "school id is required"))
		return
	}

	var slots timetable.TimeSlotSet
	if err := c.ShouldBindJSON(&slots); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.repo.Replace(c.Request.Context(), sid, slots); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
