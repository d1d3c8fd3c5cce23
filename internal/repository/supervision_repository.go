package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

const supervisionColumns = "id, school_id, teacher_id, day_of_week, time_slot_id, kind, position, week, year, created_at, updated_at"

// SupervisionRepository provides persistence for supervision duties.
type SupervisionRepository struct {
	db *sqlx.DB
}

// NewSupervisionRepository creates a new supervision repository.
func NewSupervisionRepository(db *sqlx.DB) *SupervisionRepository {
	return &SupervisionRepository{db: db}
}

// ListForTeacherWeek returns one teacher's duties for one week.
func (r *SupervisionRepository) ListForTeacherWeek(ctx context.Context, schoolID, teacherID string, week timetable.WeekKey) ([]timetable.SupervisionEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM supervision_entries WHERE school_id = $1 AND teacher_id = $2 AND week = $3 AND year = $4 ORDER BY day_of_week, position", supervisionColumns)
	var entries []timetable.SupervisionEntry
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, teacherID, week.Week, week.Year); err != nil {
		return nil, fmt.Errorf("list supervisions for teacher week: %w", err)
	}
	return entries, nil
}

// FindByID loads a supervision entry by id.
func (r *SupervisionRepository) FindByID(ctx context.Context, id string) (*timetable.SupervisionEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM supervision_entries WHERE id = $1", supervisionColumns)
	var entry timetable.SupervisionEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a new supervision entry.
func (r *SupervisionRepository) Create(ctx context.Context, entry *timetable.SupervisionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `INSERT INTO supervision_entries (id, school_id, teacher_id, day_of_week, time_slot_id, kind, position, week, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.SchoolID, entry.TeacherID, entry.Day, entry.TimeSlotID,
		entry.Kind, entry.Position, entry.Week, entry.Year, entry.CreatedAt, entry.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create supervision entry: %w", err)
	}
	return nil
}

// Delete removes a supervision entry.
func (r *SupervisionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM supervision_entries WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete supervision entry: %w", err)
	}
	return nil
}
