package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

type scheduleReader interface {
	ListForWeek(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) ([]timetable.ScheduleEntry, error)
}

type supervisionReader interface {
	ListForTeacherWeek(ctx context.Context, schoolID, teacherID string, week timetable.WeekKey) ([]timetable.SupervisionEntry, error)
}

type timeSlotReader interface {
	List(ctx context.Context, schoolID string) (timetable.TimeSlotSet, error)
}

type snapshotCache interface {
	Get(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) (*timetable.Snapshot, error)
	Set(ctx context.Context, schoolID string, identity timetable.Identity, snap timetable.Snapshot) error
	Invalidate(ctx context.Context, schoolID string, identity timetable.Identity) error
}

// SnapshotService assembles the week-scoped bundle of schedule entries,
// supervision entries and time slots for one identity. The REST planning
// endpoint and the push dispatcher share this single code path.
type SnapshotService struct {
	schedules    scheduleReader
	supervisions supervisionReader
	timeSlots    timeSlotReader
	cache        snapshotCache
	metrics      *MetricsService
	logger       *zap.Logger

	// now is swapped in tests to pin the server's current week.
	now func() time.Time
}

// NewSnapshotService instantiates SnapshotService. cache may be nil.
func NewSnapshotService(schedules scheduleReader, supervisions supervisionReader, timeSlots timeSlotReader, cache snapshotCache, metrics *MetricsService, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		schedules:    schedules,
		supervisions: supervisions,
		timeSlots:    timeSlots,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// CurrentWeek returns the server's current ISO week. Push snapshots are
// always computed for this week, regardless of what week a client is viewing.
func (s *SnapshotService) CurrentWeek() timetable.WeekKey {
	return timetable.CurrentWeek(s.now())
}

// ForIdentity builds the snapshot of one identity for one week.
func (s *SnapshotService) ForIdentity(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) (*timetable.Snapshot, error) {
	if err := identity.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSubscription.Code, appErrors.ErrSubscription.Status, appErrors.ErrSubscription.Message)
	}
	if week.IsZero() {
		week = s.CurrentWeek()
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, schoolID, identity, week); err == nil {
			s.metrics.RecordSnapshotCache(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("snapshot cache read failed", zap.String("identity", identity.Key()), zap.Error(err))
		}
		s.metrics.RecordSnapshotCache(false)
	}

	start := time.Now()
	entries, err := s.schedules.ListForWeek(ctx, schoolID, identity, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}

	var duties []timetable.SupervisionEntry
	if identity.TeacherID != "" {
		duties, err = s.supervisions.ListForTeacherWeek(ctx, schoolID, identity.TeacherID, week)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervision entries")
		}
	}

	slots, err := s.timeSlots.List(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}

	// Surface unattachable between-slots duties instead of dropping them.
	for _, duty := range duties {
		if duty.Kind != timetable.SupervisionBetweenSlots {
			continue
		}
		if _, gapErr := duty.ResolveGap(len(slots)); gapErr != nil {
			s.logger.Error("unattachable supervision entry",
				zap.String("entry_id", duty.ID),
				zap.Int("position", duty.Position),
				zap.Int("slot_count", len(slots)),
			)
		}
	}

	snap := &timetable.Snapshot{
		ScheduleEntries:    entries,
		SupervisionEntries: duties,
		TimeSlots:          slots.Sorted(),
		Week:               week.Week,
		Year:               week.Year,
		GeneratedAt:        s.now().UTC(),
	}
	s.metrics.ObserveSnapshotBuild(time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, schoolID, identity, *snap); err != nil {
			s.logger.Warn("snapshot cache write failed", zap.String("identity", identity.Key()), zap.Error(err))
		}
	}
	return snap, nil
}

// InvalidateIdentity drops cached snapshots after a mutation so the next
// build reflects the new data.
func (s *SnapshotService) InvalidateIdentity(ctx context.Context, schoolID string, identity timetable.Identity) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, schoolID, identity); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.String("identity", identity.Key()), zap.Error(err))
	}
}
