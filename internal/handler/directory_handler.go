package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edtsync/edt-sync-api/internal/models"
	"github.com/edtsync/edt-sync-api/internal/repository"
	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/response"
)

// DirectoryHandler serves the teacher/class/room reference lists.
type DirectoryHandler struct {
	repo *repository.DirectoryRepository
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(repo *repository.DirectoryRepository) *DirectoryHandler {
	return &DirectoryHandler{repo: repo}
}

// Teachers lists a school's teachers.
func (h *DirectoryHandler) Teachers(c *gin.Context) {
	h.list(c, func(ctx context.Context, filter models.DirectoryFilter) (interface{}, int, error) {
		items, total, err := h.repo.ListTeachers(ctx, filter)
		return items, total, err
	})
}

// Classes lists a school's classes.
func (h *DirectoryHandler) Classes(c *gin.Context) {
	h.list(c, func(ctx context.Context, filter models.DirectoryFilter) (interface{}, int, error) {
		items, total, err := h.repo.ListClasses(ctx, filter)
		return items, total, err
	})
}

// Rooms lists a school's rooms.
func (h *DirectoryHandler) Rooms(c *gin.Context) {
	h.list(c, func(ctx context.Context, filter models.DirectoryFilter) (interface{}, int, error) {
		items, total, err := h.repo.ListRooms(ctx, filter)
		return items, total, err
	})
}

func (h *DirectoryHandler) list(c *gin.Context, load func(context.Context, models.DirectoryFilter) (interface{}, int, error)) {
	filter := models.DirectoryFilter{
		SchoolID: schoolID(c),
		Search:   c.Query("search"),
	}
	if filter.SchoolID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "school id is required"))
		return
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	items, total, err := load(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, items, pagination)
}
