package timetable

import (
	"sort"
	"time"
)

// TimeSlot is one daily teaching period boundary. Slots are shared reference
// data used to align both lessons and between-slots supervisions.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Label     string    `db:"label" json:"label"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeSlotSet is the ordered list of a school's daily periods.
type TimeSlotSet []TimeSlot

// Sorted returns the set ordered by position.
func (s TimeSlotSet) Sorted() TimeSlotSet {
	out := make(TimeSlotSet, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// GapCount returns the number of between-slots gaps, including the gaps
// before the first and after the last period.
func (s TimeSlotSet) GapCount() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) + 1
}
