package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edtsync/edt-sync-api/internal/models"
)

// DirectoryRepository serves the teacher/class/room reference lists the
// client uses to pick an identity.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ListTeachers returns teachers for a school with pagination.
func (r *DirectoryRepository) ListTeachers(ctx context.Context, filter models.DirectoryFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND full_name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	limit, offset := pageBounds(filter)
	query := fmt.Sprintf("SELECT id, school_id, full_name, short_code, email, created_at, updated_at %s ORDER BY full_name LIMIT %d OFFSET %d", base, limit, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// ListClasses returns classes for a school with pagination.
func (r *DirectoryRepository) ListClasses(ctx context.Context, filter models.DirectoryFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	limit, offset := pageBounds(filter)
	query := fmt.Sprintf("SELECT id, school_id, name, level, created_at, updated_at %s ORDER BY name LIMIT %d OFFSET %d", base, limit, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// ListRooms returns rooms for a school with pagination.
func (r *DirectoryRepository) ListRooms(ctx context.Context, filter models.DirectoryFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	limit, offset := pageBounds(filter)
	query := fmt.Sprintf("SELECT id, school_id, name, building, created_at, updated_at %s ORDER BY name LIMIT %d OFFSET %d", base, limit, offset)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	return rooms, total, nil
}

func pageBounds(filter models.DirectoryFilter) (limit, offset int) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	return size, (page - 1) * size
}
