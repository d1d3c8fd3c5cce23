package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "school_id", "class_name", "teacher_id", "subject", "room",
		"day_of_week", "start_time", "end_time", "week", "year",
		"cancelled", "replaced", "replacement_teacher_id", "created_at", "updated_at",
	})
}

func TestScheduleRepositoryListForWeekByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("c1", "s1", "5A", "t1", "Maths", "B204", timetable.DayMonday, "08:00", "09:00", 26, 2024, false, false, "", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM schedule_entries WHERE school_id = \$1 AND week = \$2 AND year = \$3 AND class_name = \$4 ORDER BY day_of_week, start_time`).
		WithArgs("s1", 26, 2024, "5A").
		WillReturnRows(rows)

	entries, err := repo.ListForWeek(context.Background(), "s1", timetable.ClassIdentity("5A"), timetable.WeekKey{Week: 26, Year: 2024})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "5A", entries[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListForWeekByTeacherIncludesReplacements(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM schedule_entries WHERE school_id = \$1 AND week = \$2 AND year = \$3 AND \(teacher_id = \$4 OR replacement_teacher_id = \$4\)`).
		WithArgs("s1", 26, 2024, "t1").
		WillReturnRows(scheduleRows())

	_, err := repo.ListForWeek(context.Background(), "s1", timetable.TeacherIdentity("t1"), timetable.WeekKey{Week: 26, Year: 2024})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "s1", "5A", "t1", "Maths", "B204", timetable.DayMonday, "08:00", "09:00", 26, 2024, false, false, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &timetable.ScheduleEntry{
		SchoolID: "s1", ClassName: "5A", TeacherID: "t1", Subject: "Maths", Room: "B204",
		Day: timetable.DayMonday, StartTime: "08:00", EndTime: "09:00", Week: 26, Year: 2024,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositorySetCancelled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET cancelled = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("c1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SetCancelled(context.Background(), "c1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCopyWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("c1", "s1", "5A", "t1", "Maths", "B204", timetable.DayMonday, "08:00", "09:00", 26, 2024, true, false, "", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM schedule_entries WHERE school_id = \$1 AND week = \$2 AND year = \$3`).
		WithArgs("s1", 26, 2024).
		WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schedule_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	copies, err := repo.CopyWeek(context.Background(), "s1", timetable.WeekKey{Week: 26, Year: 2024}, timetable.WeekKey{Week: 27, Year: 2024})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, 27, copies[0].Week)
	assert.False(t, copies[0].Cancelled, "copies start clean")
	assert.NotEqual(t, "c1", copies[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
