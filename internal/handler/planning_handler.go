package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edtsync/edt-sync-api/internal/middleware"
	"github.com/edtsync/edt-sync-api/internal/service"
	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/export"
	"github.com/edtsync/edt-sync-api/pkg/response"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// PlanningHandler serves week-scoped snapshots over REST.
type PlanningHandler struct {
	snapshots *service.SnapshotService
}

// NewPlanningHandler constructs handler.
func NewPlanningHandler(snapshots *service.SnapshotService) *PlanningHandler {
	return &PlanningHandler{snapshots: snapshots}
}

// Get returns the snapshot for one identity and week. Week defaults to the
// server's current week.
func (h *PlanningHandler) Get(c *gin.Context) {
	snap, err := h.buildSnapshot(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// ExportPDF streams the week grid as a PDF document.
func (h *PlanningHandler) ExportPDF(c *gin.Context) {
	snap, err := h.buildSnapshot(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	identity := identityFromQuery(c)
	payload, err := export.WeekPDF(*snap, identity.Key())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
		return
	}
	response.Attachment(c, "application/pdf", "planning.pdf", payload)
}

// ExportCSV streams the week's lessons as CSV.
func (h *PlanningHandler) ExportCSV(c *gin.Context) {
	snap, err := h.buildSnapshot(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := export.WeekCSV(*snap)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
		return
	}
	response.Attachment(c, "text/csv", "planning.csv", payload)
}

func (h *PlanningHandler) buildSnapshot(c *gin.Context) (*timetable.Snapshot, error) {
	identity := identityFromQuery(c)
	if err := identity.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of teacherId, className or room is required")
	}

	var week timetable.WeekKey
	if raw := c.Query("week"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "week must be a number")
		}
		y, err := strconv.Atoi(c.Query("year"))
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "year must accompany week")
		}
		week = timetable.WeekKey{Week: w, Year: y}
	}

	return h.snapshots.ForIdentity(c.Request.Context(), schoolID(c), identity, week)
}

func identityFromQuery(c *gin.Context) timetable.Identity {
	return timetable.Identity{
		TeacherID: c.Query("teacherId"),
		ClassName: c.Query("className"),
		Room:      c.Query("room"),
	}
}

// schoolID resolves the caller's school from its token, falling back to the
// query parameter for service-to-service calls.
func schoolID(c *gin.Context) string {
	if claims := middleware.Claims(c); claims != nil && claims.SchoolID != "" {
		return claims.SchoolID
	}
	return c.Query("schoolId")
}
