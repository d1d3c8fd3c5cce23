package timetable

import (
	"fmt"
	"time"
)

// Teaching days. The timetable only covers Monday through Friday.
const (
	DayMonday    = "MONDAY"
	DayTuesday   = "TUESDAY"
	DayWednesday = "WEDNESDAY"
	DayThursday  = "THURSDAY"
	DayFriday    = "FRIDAY"
)

// TeachingDays lists the valid days in week order.
var TeachingDays = []string{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday}

// IsTeachingDay reports whether day is one of the five teaching days.
func IsTeachingDay(day string) bool {
	for _, d := range TeachingDays {
		if d == day {
			return true
		}
	}
	return false
}

// ScheduleEntry is a single lesson occurrence within one week. It is uniquely
// addressed by (class or teacher or room, day, start/end time, week, year).
type ScheduleEntry struct {
	ID                   string    `db:"id" json:"id"`
	SchoolID             string    `db:"school_id" json:"school_id"`
	ClassName            string    `db:"class_name" json:"class_name"`
	TeacherID            string    `db:"teacher_id" json:"teacher_id"`
	Subject              string    `db:"subject" json:"subject"`
	Room                 string    `db:"room" json:"room"`
	Day                  string    `db:"day_of_week" json:"day_of_week"`
	StartTime            string    `db:"start_time" json:"start_time"`
	EndTime              string    `db:"end_time" json:"end_time"`
	Week                 int       `db:"week" json:"week"`
	Year                 int       `db:"year" json:"year"`
	Cancelled            bool      `db:"cancelled" json:"cancelled"`
	Replaced             bool      `db:"replaced" json:"replaced"`
	ReplacementTeacherID string    `db:"replacement_teacher_id" json:"replacement_teacher_id,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// WeekKey returns the entry's week shard.
func (e ScheduleEntry) WeekKey() WeekKey {
	return WeekKey{Week: e.Week, Year: e.Year}
}

// Supervision kinds. A within-slot duty covers a teaching period, a
// between-slots duty covers the gap before, between or after periods.
const (
	SupervisionWithinSlot   = "WITHIN_SLOT"
	SupervisionBetweenSlots = "BETWEEN_SLOTS"
)

// SupervisionEntry is a supervision duty assigned to one teacher. For
// between-slots entries Position locates the gap relative to the time slot
// set: -1 is before the first slot, i is the gap after slot i, and len-1 is
// after the last slot.
type SupervisionEntry struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Day        string    `db:"day_of_week" json:"day_of_week"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	Kind       string    `db:"kind" json:"kind"`
	Position   int       `db:"position" json:"position"`
	Week       int       `db:"week" json:"week"`
	Year       int       `db:"year" json:"year"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// WeekKey returns the entry's week shard.
func (e SupervisionEntry) WeekKey() WeekKey {
	return WeekKey{Week: e.Week, Year: e.Year}
}

// UnattachableError reports a between-slots supervision whose position does
// not resolve to a valid gap for the current time slot set. Such entries are
// a data error and must surface, not silently disappear from the timetable.
type UnattachableError struct {
	EntryID   string
	Position  int
	SlotCount int
}

// Error implements the error interface.
func (e *UnattachableError) Error() string {
	return fmt.Sprintf("supervision %s: position %d does not resolve to a gap for %d slots", e.EntryID, e.Position, e.SlotCount)
}

// ResolveGap maps the entry's position to a zero-based gap index in
// [0, slotCount]: gap 0 precedes the first slot, gap i+1 follows slot i.
// Only meaningful for between-slots entries.
func (e SupervisionEntry) ResolveGap(slotCount int) (int, error) {
	if e.Kind != SupervisionBetweenSlots {
		return 0, fmt.Errorf("supervision %s: gap resolution on %s entry", e.ID, e.Kind)
	}
	if e.Position < -1 || e.Position > slotCount-1 {
		return 0, &UnattachableError{EntryID: e.ID, Position: e.Position, SlotCount: slotCount}
	}
	return e.Position + 1, nil
}
