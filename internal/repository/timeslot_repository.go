package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// TimeSlotRepository provides persistence for the daily period reference data.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new time slot repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// List returns a school's time slot set ordered by position.
func (r *TimeSlotRepository) List(ctx context.Context, schoolID string) (timetable.TimeSlotSet, error) {
	const query = `SELECT id, school_id, label, start_time, end_time, position, created_at, updated_at FROM time_slots WHERE school_id = $1 ORDER BY position`
	var slots timetable.TimeSlotSet
	if err := r.db.SelectContext(ctx, &slots, query, schoolID); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// Replace swaps a school's entire slot set atomically. Reference data is
// small; a full rewrite keeps positions consistent.
func (r *TimeSlotRepository) Replace(ctx context.Context, schoolID string, slots timetable.TimeSlotSet) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace time slots: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots WHERE school_id = $1`, schoolID); err != nil {
		return fmt.Errorf("replace time slots: clear: %w", err)
	}

	const insert = `INSERT INTO time_slots (id, school_id, label, start_time, end_time, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	now := time.Now().UTC()
	for i, slot := range slots {
		id := slot.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insert, id, schoolID, slot.Label, slot.StartTime, slot.EndTime, i, now); err != nil {
			return fmt.Errorf("replace time slots: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace time slots: commit: %w", err)
	}
	return nil
}
