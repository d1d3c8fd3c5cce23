package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

const scheduleColumns = "id, school_id, class_name, teacher_id, subject, room, day_of_week, start_time, end_time, week, year, cancelled, replaced, replacement_teacher_id, created_at, updated_at"

// ScheduleRepository provides persistence for schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListForWeek returns the entries of one identity's timetable for one week.
func (r *ScheduleRepository) ListForWeek(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) ([]timetable.ScheduleEntry, error) {
	base := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE school_id = $1 AND week = $2 AND year = $3", scheduleColumns)
	args := []interface{}{schoolID, week.Week, week.Year}

	switch {
	case identity.TeacherID != "":
		base += fmt.Sprintf(" AND (teacher_id = $%d OR replacement_teacher_id = $%d)", len(args)+1, len(args)+1)
		args = append(args, identity.TeacherID)
	case identity.ClassName != "":
		base += fmt.Sprintf(" AND class_name = $%d", len(args)+1)
		args = append(args, identity.ClassName)
	case identity.Room != "":
		base += fmt.Sprintf(" AND room = $%d", len(args)+1)
		args = append(args, identity.Room)
	}

	base += " ORDER BY day_of_week, start_time"

	var entries []timetable.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, base, args...); err != nil {
		return nil, fmt.Errorf("list schedule entries for week: %w", err)
	}
	return entries, nil
}

// FindByID loads a schedule entry by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*timetable.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE id = $1", scheduleColumns)
	var entry timetable.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a new schedule entry.
func (r *ScheduleRepository) Create(ctx context.Context, entry *timetable.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `INSERT INTO schedule_entries (id, school_id, class_name, teacher_id, subject, room, day_of_week, start_time, end_time, week, year, cancelled, replaced, replacement_teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.SchoolID, entry.ClassName, entry.TeacherID, entry.Subject, entry.Room,
		entry.Day, entry.StartTime, entry.EndTime, entry.Week, entry.Year,
		entry.Cancelled, entry.Replaced, entry.ReplacementTeacherID, entry.CreatedAt, entry.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

// Update persists changes to an existing entry.
func (r *ScheduleRepository) Update(ctx context.Context, entry *timetable.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()

	const query = `UPDATE schedule_entries SET class_name = $2, teacher_id = $3, subject = $4, room = $5, day_of_week = $6, start_time = $7, end_time = $8, week = $9, year = $10, cancelled = $11, replaced = $12, replacement_teacher_id = $13, updated_at = $14 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ClassName, entry.TeacherID, entry.Subject, entry.Room,
		entry.Day, entry.StartTime, entry.EndTime, entry.Week, entry.Year,
		entry.Cancelled, entry.Replaced, entry.ReplacementTeacherID, entry.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return nil
}

// SetCancelled flips the cancelled flag on an entry.
func (r *ScheduleRepository) SetCancelled(ctx context.Context, id string, cancelled bool) error {
	const query = `UPDATE schedule_entries SET cancelled = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, cancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("set schedule entry cancelled: %w", err)
	}
	return nil
}

// SetReplacement marks an entry replaced by another teacher.
func (r *ScheduleRepository) SetReplacement(ctx context.Context, id, replacementTeacherID string) error {
	const query = `UPDATE schedule_entries SET replaced = TRUE, replacement_teacher_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, replacementTeacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set schedule entry replacement: %w", err)
	}
	return nil
}

// Delete removes an entry permanently.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_entries WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return nil
}

// CopyWeek duplicates every entry of one week into another week and returns
// the copies. Cancellation and replacement flags are reset on the copies.
func (r *ScheduleRepository) CopyWeek(ctx context.Context, schoolID string, from, to timetable.WeekKey) ([]timetable.ScheduleEntry, error) {
	source := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE school_id = $1 AND week = $2 AND year = $3", scheduleColumns)
	var entries []timetable.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, source, schoolID, from.Week, from.Year); err != nil {
		return nil, fmt.Errorf("copy week: load source: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("copy week: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO schedule_entries (id, school_id, class_name, teacher_id, subject, room, day_of_week, start_time, end_time, week, year, cancelled, replaced, replacement_teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, FALSE, '', $12, $12)`

	now := time.Now().UTC()
	copies := make([]timetable.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		copy := entry
		copy.ID = uuid.NewString()
		copy.Week = to.Week
		copy.Year = to.Year
		copy.Cancelled = false
		copy.Replaced = false
		copy.ReplacementTeacherID = ""
		copy.CreatedAt = now
		copy.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, insert,
			copy.ID, copy.SchoolID, copy.ClassName, copy.TeacherID, copy.Subject, copy.Room,
			copy.Day, copy.StartTime, copy.EndTime, copy.Week, copy.Year, now,
		); err != nil {
			return nil, fmt.Errorf("copy week: insert: %w", err)
		}
		copies = append(copies, copy)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("copy week: commit: %w", err)
	}
	return copies, nil
}
