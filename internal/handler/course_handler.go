package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edtsync/edt-sync-api/internal/service"
	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/response"
)

// CourseHandler manages the lesson mutation endpoints that feed the push path.
type CourseHandler struct {
	service *service.ScheduleService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(svc *service.ScheduleService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Create adds a lesson.
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CourseRequest
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

// Update rewrites a lesson.
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Cancel marks a lesson cancelled.
func (h *CourseHandler) Cancel(c *gin.Context) {
	entry, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Replace assigns a substitute teacher.
func (h *CourseHandler) Replace(c *gin.Context) {
	var req struct {
		ReplacementTeacherID string `json:"replacement_teacher_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	entry, err := h.service.Replace(c.Request.Context(), c.Param("id"), req.ReplacementTeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete removes a lesson.
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CopyWeek duplicates a week's lessons into another week.
func (h *CourseHandler) CopyWeek(c *gin.Context) {
	var req service.CopyWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	copies, err := h.service.CopyWeek(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, copies, nil)
}
