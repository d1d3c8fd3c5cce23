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

type scheduleRepository interface {
	scheduleReader
	FindByID(ctx context.Context, id string) (*timetable.ScheduleEntry, error)
	Create(ctx context.Context, entry *timetable.ScheduleEntry) error
	Update(ctx context.Context, entry *timetable.ScheduleEntry) error
	SetCancelled(ctx context.Context, id string, cancelled bool) error
	SetReplacement(ctx context.Context, id, replacementTeacherID string) error
	Delete(ctx context.Context, id string) error
	CopyWeek(ctx context.Context, schoolID string, from, to timetable.WeekKey) ([]timetable.ScheduleEntry, error)
}

// MutationNotifier receives the identities affected by a schedule mutation.
// The push dispatcher implements it; delivery is best-effort and must never
// block or fail the mutation itself.
type MutationNotifier interface {
	Notify(ctx context.Context, teacherIDs, classNames []string)
}

// CourseRequest describes the payload for creating or updating a lesson.
type CourseRequest struct {
	SchoolID  string `json:"school_id" validate:"required"`
	ClassName string `json:"class_name" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Room      string `json:"room"`
	Day       string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Week      int    `json:"week" validate:"required,min=1,max=53"`
	Year      int    `json:"year" validate:"required,min=2000"`
}

// CopyWeekRequest duplicates one week's entries into another.
type CopyWeekRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
	FromWeek int    `json:"from_week" validate:"required,min=1,max=53"`
	FromYear int    `json:"from_year" validate:"required,min=2000"`
	ToWeek   int    `json:"to_week" validate:"required,min=1,max=53"`
	ToYear   int    `json:"to_year" validate:"required,min=2000"`
}

// ScheduleService owns the lesson mutation surface. Every successful
// mutation wakes the push dispatcher for the affected identities.
type ScheduleService struct {
	repo      scheduleRepository
	snapshots *SnapshotService
	notifier  MutationNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, snapshots *SnapshotService, notifier MutationNotifier, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, snapshots: snapshots, notifier: notifier, validator: validate, logger: logger}
}

// Create adds a new lesson occurrence.
func (s *ScheduleService) Create(ctx context.Context, req CourseRequest) (*timetable.ScheduleEntry, error) {
	if err := s.validateCourse(req); err != nil {
		return nil, err
	}

	entry := &timetable.ScheduleEntry{
		SchoolID:  req.SchoolID,
		ClassName: req.ClassName,
		TeacherID: req.TeacherID,
		Subject:   req.Subject,
		Room:      req.Room,
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Week:      req.Week,
		Year:      req.Year,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.afterMutation(ctx, entry, nil)
	return entry, nil
}

// Update rewrites an existing lesson.
func (s *ScheduleService) Update(ctx context.Context, id string, req CourseRequest) (*timetable.ScheduleEntry, error) {
	if err := s.validateCourse(req); err != nil {
		return nil, err
	}

	existing, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := *existing
	existing.ClassName = req.ClassName
	existing.TeacherID = req.TeacherID
	existing.Subject = req.Subject
	existing.Room = req.Room
	existing.Day = req.Day
	existing.StartTime = req.StartTime
	existing.EndTime = req.EndTime
	existing.Week = req.Week
	existing.Year = req.Year

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.afterMutation(ctx, existing, &previous)
	return existing, nil
}

// Cancel marks a lesson cancelled without removing it from the timetable.
func (s *ScheduleService) Cancel(ctx context.Context, id string) (*timetable.ScheduleEntry, error) {
	entry, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetCancelled(ctx, id, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel course")
	}
	entry.Cancelled = true

	s.afterMutation(ctx, entry, nil)
	return entry, nil
}

// Replace assigns a substitute teacher to a lesson.
func (s *ScheduleService) Replace(ctx context.Context, id, replacementTeacherID string) (*timetable.ScheduleEntry, error) {
	if replacementTeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "replacement teacher id is required")
	}

	entry, err := s.findEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetReplacement(ctx, id, replacementTeacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace course teacher")
	}
	previous := *entry
	entry.Replaced = true
	entry.ReplacementTeacherID = replacementTeacherID

	s.afterMutation(ctx, entry, &previous)
	return entry, nil
}

// Delete removes a lesson permanently.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	entry, err := s.findEntry(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.afterMutation(ctx, entry, nil)
	return nil
}

// CopyWeek duplicates a whole week and notifies everyone appearing in it.
func (s *ScheduleService) CopyWeek(ctx context.Context, req CopyWeekRequest) ([]timetable.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	from := timetable.WeekKey{Week: req.FromWeek, Year: req.FromYear}
	to := timetable.WeekKey{Week: req.ToWeek, Year: req.ToYear}
	if from == to {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target week are identical")
	}

	copies, err := s.repo.CopyWeek(ctx, req.SchoolID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy week")
	}

	teacherSet := map[string]struct{}{}
	classSet := map[string]struct{}{}
	for i := range copies {
		s.collectIdentities(ctx, &copies[i], teacherSet, classSet)
	}
	s.notify(ctx, teacherSet, classSet)
	return copies, nil
}

func (s *ScheduleService) validateCourse(req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !timetable.IsTeachingDay(req.Day) {
		return appErrors.Clone(appErrors.ErrValidation, "day must be a teaching day (Monday through Friday)")
	}
	return nil
}

func (s *ScheduleService) findEntry(ctx context.Context, id string) (*timetable.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return entry, nil
}

// afterMutation invalidates cached snapshots and wakes the dispatcher. The
// previous entry state widens the affected set when a mutation moved a lesson
// between teachers or classes.
func (s *ScheduleService) afterMutation(ctx context.Context, entry, previous *timetable.ScheduleEntry) {
	teacherSet := map[string]struct{}{}
	classSet := map[string]struct{}{}
	s.collectIdentities(ctx, entry, teacherSet, classSet)
	if previous != nil {
		s.collectIdentities(ctx, previous, teacherSet, classSet)
	}
	s.notify(ctx, teacherSet, classSet)
}

func (s *ScheduleService) collectIdentities(ctx context.Context, entry *timetable.ScheduleEntry, teacherSet, classSet map[string]struct{}) {
	if entry.TeacherID != "" {
		teacherSet[entry.TeacherID] = struct{}{}
		s.snapshots.InvalidateIdentity(ctx, entry.SchoolID, timetable.TeacherIdentity(entry.TeacherID))
	}
	if entry.ReplacementTeacherID != "" {
		teacherSet[entry.ReplacementTeacherID] = struct{}{}
		s.snapshots.InvalidateIdentity(ctx, entry.SchoolID, timetable.TeacherIdentity(entry.ReplacementTeacherID))
	}
	if entry.ClassName != "" {
		classSet[entry.ClassName] = struct{}{}
		s.snapshots.InvalidateIdentity(ctx, entry.SchoolID, timetable.ClassIdentity(entry.ClassName))
	}
}

func (s *ScheduleService) notify(ctx context.Context, teacherSet, classSet map[string]struct{}) {
	if s.notifier == nil {
		return
	}
	teachers := make([]string, 0, len(teacherSet))
	for id := range teacherSet {
		teachers = append(teachers, id)
	}
	classes := make([]string, 0, len(classSet))
	for name := range classSet {
		classes = append(classes, name)
	}
	if len(teachers) == 0 && len(classes) == 0 {
		return
	}
	s.notifier.Notify(ctx, teachers, classes)
}
