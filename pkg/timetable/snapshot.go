package timetable

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the bundle served by one week-scoped REST response or one push:
// the schedule entries, supervision entries and time slot set for a single
// identity and week.
type Snapshot struct {
	ScheduleEntries    []ScheduleEntry    `json:"schedule_entries"`
	SupervisionEntries []SupervisionEntry `json:"supervision_entries"`
	TimeSlots          TimeSlotSet        `json:"time_slots"`
	Week               int                `json:"week"`
	Year               int                `json:"year"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// WeekKey returns the week the snapshot was computed for.
func (s Snapshot) WeekKey() WeekKey {
	return WeekKey{Week: s.Week, Year: s.Year}
}

// FilterWeek returns the snapshot's schedule entries restricted to the given
// week. The predicate is idempotent: filtering an already filtered list is a
// no-op.
func (s Snapshot) FilterWeek(key WeekKey) []ScheduleEntry {
	return FilterEntriesByWeek(s.ScheduleEntries, key)
}

// FilterEntriesByWeek returns the entries belonging to the given week.
func FilterEntriesByWeek(entries []ScheduleEntry, key WeekKey) []ScheduleEntry {
	out := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if key.Matches(e.Week, e.Year) {
			out = append(out, e)
		}
	}
	return out
}

// FilterSupervisionsByWeek returns the supervision entries belonging to the
// given week.
func FilterSupervisionsByWeek(entries []SupervisionEntry, key WeekKey) []SupervisionEntry {
	out := make([]SupervisionEntry, 0, len(entries))
	for _, e := range entries {
		if key.Matches(e.Week, e.Year) {
			out = append(out, e)
		}
	}
	return out
}

// legacyEnvelope covers the two historical object shapes the upstream server
// emits: {"cours": [...]} and {"planning": [...]}. Either may also carry
// supervisions and the slot set.
type legacyEnvelope struct {
	Cours              []ScheduleEntry    `json:"cours"`
	Planning           []ScheduleEntry    `json:"planning"`
	Surveillances      []SupervisionEntry `json:"surveillances"`
	SupervisionEntries []SupervisionEntry `json:"supervision_entries"`
	TimeSlots          TimeSlotSet        `json:"time_slots"`
	CurrentWeek        int                `json:"current_week"`
	CurrentYear        int                `json:"current_year"`
}

// NormalizeSnapshot parses a wire payload into a canonical Snapshot,
// accepting the canonical form, the legacy {cours}/{planning} envelopes, and
// a bare entry array. Internal logic never branches on payload shape again
// after this point.
func NormalizeSnapshot(raw []byte) (Snapshot, error) {
	var snap Snapshot
	if len(raw) == 0 {
		return snap, fmt.Errorf("normalize snapshot: empty payload")
	}

	// Bare array of schedule entries.
	if raw[0] == '[' {
		var entries []ScheduleEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return snap, fmt.Errorf("normalize snapshot: bare array: %w", err)
		}
		snap.ScheduleEntries = entries
		inferWeek(&snap)
		return snap, nil
	}

	// Gateway responses wrap the payload in a data envelope.
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 && string(wrapped.Data) != "null" {
		return NormalizeSnapshot(wrapped.Data)
	}

	// Canonical form.
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("normalize snapshot: %w", err)
	}
	if snap.ScheduleEntries != nil || snap.Week != 0 {
		return snap, nil
	}

	// Legacy envelopes.
	var env legacyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return snap, fmt.Errorf("normalize snapshot: legacy envelope: %w", err)
	}
	switch {
	case env.Cours != nil:
		snap.ScheduleEntries = env.Cours
	case env.Planning != nil:
		snap.ScheduleEntries = env.Planning
	default:
		snap.ScheduleEntries = []ScheduleEntry{}
	}
	snap.SupervisionEntries = env.Surveillances
	if snap.SupervisionEntries == nil {
		snap.SupervisionEntries = env.SupervisionEntries
	}
	snap.TimeSlots = env.TimeSlots
	snap.Week = env.CurrentWeek
	snap.Year = env.CurrentYear
	if snap.Week == 0 {
		inferWeek(&snap)
	}
	return snap, nil
}

// inferWeek fills the snapshot week from its entries when the envelope did
// not carry one.
func inferWeek(snap *Snapshot) {
	if len(snap.ScheduleEntries) > 0 {
		snap.Week = snap.ScheduleEntries[0].Week
		snap.Year = snap.ScheduleEntries[0].Year
	}
}
