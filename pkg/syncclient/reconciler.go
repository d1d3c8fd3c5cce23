package syncclient

import (
	"sync"

	"go.uber.org/zap"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// RenderFunc receives every snapshot the reconciler decides to show.
type RenderFunc func(timetable.Snapshot)

// Reconciler merges fetched and pushed snapshots for one planning
// screen. It tracks which week the user is looking at, filters every
// incoming snapshot down to that week, defers pushes for other weeks
// until the user navigates there, and resolves races between the REST
// and push paths by keeping whichever payload was generated last.
type Reconciler struct {
	mu sync.Mutex

	requested timetable.WeekKey
	current   *timetable.Snapshot
	deferred  map[timetable.WeekKey]timetable.Snapshot

	render RenderFunc
	logger *zap.Logger
}

// NewReconciler starts a reconciler focused on the given week.
func NewReconciler(initial timetable.WeekKey, render RenderFunc, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		requested: initial,
		deferred:  make(map[timetable.WeekKey]timetable.Snapshot),
		render:    render,
		logger:    logger,
	}
}

// Requested returns the week the screen currently shows.
func (r *Reconciler) Requested() timetable.WeekKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requested
}

// Current returns the last rendered snapshot, or nil before the first one.
func (r *Reconciler) Current() *timetable.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// ApplyFetch feeds in the result of a Router fetch.
func (r *Reconciler) ApplyFetch(snap timetable.Snapshot) {
	r.apply(snap, "fetch")
}

// ApplyPush feeds in a pushed snapshot. Wire it as the Socket's
// SnapshotHandler.
func (r *Reconciler) ApplyPush(snap timetable.Snapshot) {
	r.apply(snap, "push")
}

func (r *Reconciler) apply(snap timetable.Snapshot, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snap.WeekKey()
	if key != r.requested {
		// The user is looking at a different week. Keep the freshest
		// snapshot per week for when they navigate there.
		if prev, ok := r.deferred[key]; !ok || snap.GeneratedAt.After(prev.GeneratedAt) {
			r.deferred[key] = snap
		}
		r.logger.Debug("snapshot deferred",
			zap.String("source", source),
			zap.Int("week", key.Week), zap.Int("year", key.Year))
		return
	}

	if r.current != nil && !snap.GeneratedAt.After(r.current.GeneratedAt) {
		// A newer payload already won the race.
		r.logger.Debug("stale snapshot dropped", zap.String("source", source))
		return
	}
	r.show(snap)
}

// GoToNextWeek moves the screen one ISO week forward and returns the
// new key so the caller can trigger a fetch for it. A deferred push for
// that week renders immediately; the existing socket subscription keeps
// covering it, so no resubscribe happens.
func (r *Reconciler) GoToNextWeek() timetable.WeekKey {
	return r.navigate(func(k timetable.WeekKey) timetable.WeekKey { return k.Next() })
}

// GoToPreviousWeek moves the screen one ISO week back.
func (r *Reconciler) GoToPreviousWeek() timetable.WeekKey {
	return r.navigate(func(k timetable.WeekKey) timetable.WeekKey { return k.Previous() })
}

func (r *Reconciler) navigate(step func(timetable.WeekKey) timetable.WeekKey) timetable.WeekKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requested = step(r.requested)
	r.current = nil

	if snap, ok := r.deferred[r.requested]; ok {
		delete(r.deferred, r.requested)
		r.show(snap)
	}
	return r.requested
}

// show renders a week-filtered copy. Callers hold r.mu.
func (r *Reconciler) show(snap timetable.Snapshot) {
	snap.ScheduleEntries = timetable.FilterEntriesByWeek(snap.ScheduleEntries, r.requested)
	snap.SupervisionEntries = timetable.FilterSupervisionsByWeek(snap.SupervisionEntries, r.requested)
	r.current = &snap
	if r.render != nil {
		r.render(snap)
	}
}
