package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// mockScheduleRepo implements scheduleRepository over in-memory fixtures.
type mockScheduleRepo struct {
	entries map[string]*timetable.ScheduleEntry
	listErr error

	listCalls int
	created   []*timetable.ScheduleEntry
	deleted   []string
	copied    []timetable.ScheduleEntry
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{entries: make(map[string]*timetable.ScheduleEntry)}
}

func (m *mockScheduleRepo) ListForWeek(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) ([]timetable.ScheduleEntry, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []timetable.ScheduleEntry
	for _, e := range m.entries {
		if e.SchoolID == schoolID && identity.Matches(*e) && week.Matches(e.Week, e.Year) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*timetable.ScheduleEntry, error) {
	if e, ok := m.entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sqlNoRows()
}

func (m *mockScheduleRepo) Create(ctx context.Context, entry *timetable.ScheduleEntry) error {
	entry.ID = "generated"
	m.created = append(m.created, entry)
	m.entries[entry.ID] = entry
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, entry *timetable.ScheduleEntry) error {
	m.entries[entry.ID] = entry
	return nil
}

func (m *mockScheduleRepo) SetCancelled(ctx context.Context, id string, cancelled bool) error {
	m.entries[id].Cancelled = cancelled
	return nil
}

func (m *mockScheduleRepo) SetReplacement(ctx context.Context, id, replacementTeacherID string) error {
	m.entries[id].Replaced = true
	m.entries[id].ReplacementTeacherID = replacementTeacherID
	return nil
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id string) error {
	delete(m.entries, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockScheduleRepo) CopyWeek(ctx context.Context, schoolID string, from, to timetable.WeekKey) ([]timetable.ScheduleEntry, error) {
	return m.copied, nil
}

type mockSupervisionRepo struct {
	entries map[string]*timetable.SupervisionEntry
	listErr error
}

func newMockSupervisionRepo() *mockSupervisionRepo {
	return &mockSupervisionRepo{entries: make(map[string]*timetable.SupervisionEntry)}
}

func (m *mockSupervisionRepo) ListForTeacherWeek(ctx context.Context, schoolID, teacherID string, week timetable.WeekKey) ([]timetable.SupervisionEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []timetable.SupervisionEntry
	for _, e := range m.entries {
		if e.SchoolID == schoolID && e.TeacherID == teacherID && week.Matches(e.Week, e.Year) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockSupervisionRepo) FindByID(ctx context.Context, id string) (*timetable.SupervisionEntry, error) {
	if e, ok := m.entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sqlNoRows()
}

func (m *mockSupervisionRepo) Create(ctx context.Context, entry *timetable.SupervisionEntry) error {
	entry.ID = "generated"
	m.entries[entry.ID] = entry
	return nil
}

func (m *mockSupervisionRepo) Delete(ctx context.Context, id string) error {
	delete(m.entries, id)
	return nil
}

type mockTimeSlotRepo struct {
	slots timetable.TimeSlotSet
	err   error
}

func (m *mockTimeSlotRepo) List(ctx context.Context, schoolID string) (timetable.TimeSlotSet, error) {
	return m.slots, m.err
}

func (m *mockTimeSlotRepo) Replace(ctx context.Context, schoolID string, slots timetable.TimeSlotSet) error {
	m.slots = slots
	return nil
}

// mockSnapshotCache keys snapshots exactly like the Redis implementation.
type mockSnapshotCache struct {
	store       map[string]timetable.Snapshot
	invalidated []string
}

func newMockSnapshotCache() *mockSnapshotCache {
	return &mockSnapshotCache{store: make(map[string]timetable.Snapshot)}
}

func (m *mockSnapshotCache) key(schoolID string, identity timetable.Identity, week timetable.WeekKey) string {
	return fmt.Sprintf("%s|%s|%d|%d", schoolID, identity.Key(), week.Year, week.Week)
}

func (m *mockSnapshotCache) Get(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) (*timetable.Snapshot, error) {
	if snap, ok := m.store[m.key(schoolID, identity, week)]; ok {
		return &snap, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *mockSnapshotCache) Set(ctx context.Context, schoolID string, identity timetable.Identity, snap timetable.Snapshot) error {
	m.store[m.key(schoolID, identity, timetable.WeekKey{Week: snap.Week, Year: snap.Year})] = snap
	return nil
}

func (m *mockSnapshotCache) Invalidate(ctx context.Context, schoolID string, identity timetable.Identity) error {
	m.invalidated = append(m.invalidated, schoolID+"|"+identity.Key())
	for key := range m.store {
		delete(m.store, key)
	}
	return nil
}

func sqlNoRows() error {
	return sql.ErrNoRows
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Monday of ISO week 10, 2026.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestSnapshotService(schedules *mockScheduleRepo, supervisions *mockSupervisionRepo, slots *mockTimeSlotRepo, cache snapshotCache) *SnapshotService {
	svc := NewSnapshotService(schedules, supervisions, slots, cache, nil, nil)
	svc.now = fixedClock(testNow)
	return svc
}

func TestSnapshotServiceCurrentWeek(t *testing.T) {
	svc := newTestSnapshotService(newMockScheduleRepo(), newMockSupervisionRepo(), &mockTimeSlotRepo{}, nil)
	assert.Equal(t, timetable.WeekKey{Week: 10, Year: 2026}, svc.CurrentWeek())
}

func TestSnapshotServiceForIdentity(t *testing.T) {
	schedules := newMockScheduleRepo()
	schedules.entries["c1"] = &timetable.ScheduleEntry{
		ID: "c1", SchoolID: "lycee-a", ClassName: "3B", TeacherID: "t1",
		Subject: "Maths", Week: 10, Year: 2026,
	}
	schedules.entries["c2"] = &timetable.ScheduleEntry{
		ID: "c2", SchoolID: "lycee-a", ClassName: "3B", TeacherID: "t1",
		Subject: "Maths", Week: 11, Year: 2026,
	}
	supervisions := newMockSupervisionRepo()
	supervisions.entries["s1"] = &timetable.SupervisionEntry{
		ID: "s1", SchoolID: "lycee-a", TeacherID: "t1",
		Kind: timetable.SupervisionWithinSlot, TimeSlotID: "slot1", Week: 10, Year: 2026,
	}
	slots := &mockTimeSlotRepo{slots: timetable.TimeSlotSet{
		{ID: "slot2", Position: 2}, {ID: "slot1", Position: 1},
	}}
	svc := newTestSnapshotService(schedules, supervisions, slots, nil)

	snap, err := svc.ForIdentity(context.Background(), "lycee-a", timetable.TeacherIdentity("t1"), timetable.WeekKey{Week: 10, Year: 2026})
	require.NoError(t, err)

	require.Len(t, snap.ScheduleEntries, 1)
	assert.Equal(t, "c1", snap.ScheduleEntries[0].ID)
	require.Len(t, snap.SupervisionEntries, 1)
	assert.Equal(t, 10, snap.Week)
	assert.Equal(t, 2026, snap.Year)
	// Slots come back ordered by position.
	require.Len(t, snap.TimeSlots, 2)
	assert.Equal(t, "slot1", snap.TimeSlots[0].ID)
	assert.Equal(t, testNow, snap.GeneratedAt)
}

func TestSnapshotServiceDefaultsToCurrentWeek(t *testing.T) {
	schedules := newMockScheduleRepo()
	svc := newTestSnapshotService(schedules, newMockSupervisionRepo(), &mockTimeSlotRepo{}, nil)

	snap, err := svc.ForIdentity(context.Background(), "lycee-a", timetable.ClassIdentity("3B"), timetable.WeekKey{})
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Week)
	assert.Equal(t, 2026, snap.Year)
}

func TestSnapshotServiceSkipsSupervisionsForClassIdentity(t *testing.T) {
	supervisions := newMockSupervisionRepo()
	supervisions.listErr = errors.New("must not be called")
	svc := newTestSnapshotService(newMockScheduleRepo(), supervisions, &mockTimeSlotRepo{}, nil)

	snap, err := svc.ForIdentity(context.Background(), "lycee-a", timetable.ClassIdentity("3B"), timetable.WeekKey{Week: 10, Year: 2026})
	require.NoError(t, err)
	assert.Empty(t, snap.SupervisionEntries)
}

func TestSnapshotServiceRejectsAmbiguousIdentity(t *testing.T) {
	svc := newTestSnapshotService(newMockScheduleRepo(), newMockSupervisionRepo(), &mockTimeSlotRepo{}, nil)

	_, err := svc.ForIdentity(context.Background(), "lycee-a", timetable.Identity{}, timetable.WeekKey{Week: 10, Year: 2026})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrSubscription.Code, appErr.Code)
}

func TestSnapshotServiceUsesCache(t *testing.T) {
	schedules := newMockScheduleRepo()
	cache := newMockSnapshotCache()
	svc := newTestSnapshotService(schedules, newMockSupervisionRepo(), &mockTimeSlotRepo{}, cache)

	week := timetable.WeekKey{Week: 10, Year: 2026}
	identity := timetable.ClassIdentity("3B")

	_, err := svc.ForIdentity(context.Background(), "lycee-a", identity, week)
	require.NoError(t, err)
	assert.Equal(t, 1, schedules.listCalls)

	// Second build is served from the cache.
	_, err = svc.ForIdentity(context.Background(), "lycee-a", identity, week)
	require.NoError(t, err)
	assert.Equal(t, 1, schedules.listCalls)

	svc.InvalidateIdentity(context.Background(), "lycee-a", identity)
	_, err = svc.ForIdentity(context.Background(), "lycee-a", identity, week)
	require.NoError(t, err)
	assert.Equal(t, 2, schedules.listCalls)
}

func TestSnapshotServicePropagatesRepoErrors(t *testing.T) {
	schedules := newMockScheduleRepo()
	schedules.listErr = errors.New("db down")
	svc := newTestSnapshotService(schedules, newMockSupervisionRepo(), &mockTimeSlotRepo{}, nil)

	_, err := svc.ForIdentity(context.Background(), "lycee-a", timetable.ClassIdentity("3B"), timetable.WeekKey{Week: 10, Year: 2026})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}
