package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/edtsync/edt-sync-api/pkg/errors"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

type supervisionRepository interface {
	supervisionReader
	FindByID(ctx context.Context, id string) (*timetable.SupervisionEntry, error)
	Create(ctx context.Context, entry *timetable.SupervisionEntry) error
	Delete(ctx context.Context, id string) error
}

// SupervisionRequest describes the payload for assigning a supervision duty.
type SupervisionRequest struct {
	SchoolID   string `json:"school_id" validate:"required"`
	TeacherID  string `json:"teacher_id" validate:"required"`
	Day        string `json:"day_of_week" validate:"required"`
	TimeSlotID string `json:"time_slot_id"`
	Kind       string `json:"kind" validate:"required,oneof=WITHIN_SLOT BETWEEN_SLOTS"`
	Position   int    `json:"position"`
	Week       int    `json:"week" validate:"required,min=1,max=53"`
	Year       int    `json:"year" validate:"required,min=2000"`
}

// SupervisionService owns supervision duty mutations. Between-slots positions
// are validated against the school's current time slot set before writing,
// so unattachable entries never reach the store.
type SupervisionService struct {
	repo      supervisionRepository
	timeSlots timeSlotReader
	snapshots *SnapshotService
	notifier  MutationNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSupervisionService instantiates SupervisionService.
func NewSupervisionService(repo supervisionRepository, timeSlots timeSlotReader, snapshots *SnapshotService, notifier MutationNotifier, validate *validator.Validate, logger *zap.Logger) *SupervisionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisionService{repo: repo, timeSlots: timeSlots, snapshots: snapshots, notifier: notifier, validator: validate, logger: logger}
}

// Create assigns a new duty to a teacher.
func (s *SupervisionService) Create(ctx context.Context, req SupervisionRequest) (*timetable.SupervisionEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !timetable.IsTeachingDay(req.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be a teaching day (Monday through Friday)")
	}

	entry := &timetable.SupervisionEntry{
		SchoolID:   req.SchoolID,
		TeacherID:  req.TeacherID,
		Day:        req.Day,
		TimeSlotID: req.TimeSlotID,
		Kind:       req.Kind,
		Position:   req.Position,
		Week:       req.Week,
		Year:       req.Year,
	}

	switch req.Kind {
	case timetable.SupervisionWithinSlot:
		if req.TimeSlotID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "within-slot supervision requires a time slot id")
		}
	case timetable.SupervisionBetweenSlots:
		slots, err := s.timeSlots.List(ctx, req.SchoolID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
		}
		if _, err := entry.ResolveGap(len(slots)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnattachable.Code, appErrors.ErrUnattachable.Status, appErrors.ErrUnattachable.Message)
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create supervision")
	}

	s.afterMutation(ctx, entry)
	return entry, nil
}

// Delete removes a duty.
func (s *SupervisionService) Delete(ctx context.Context, id string) error {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "supervision not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervision")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete supervision")
	}

	s.afterMutation(ctx, entry)
	return nil
}

func (s *SupervisionService) afterMutation(ctx context.Context, entry *timetable.SupervisionEntry) {
	s.snapshots.InvalidateIdentity(ctx, entry.SchoolID, timetable.TeacherIdentity(entry.TeacherID))
	if s.notifier != nil {
		s.notifier.Notify(ctx, []string{entry.TeacherID}, nil)
	}
}
