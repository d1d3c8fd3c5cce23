package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

func TestSupervisionRepositoryListForTeacherWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSupervisionRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "school_id", "teacher_id", "day_of_week", "time_slot_id",
		"kind", "position", "week", "year", "created_at", "updated_at",
	}).AddRow("sv1", "s1", "t1", timetable.DayTuesday, "", timetable.SupervisionBetweenSlots, -1, 26, 2024, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT .+ FROM supervision_entries WHERE school_id = \$1 AND teacher_id = \$2 AND week = \$3 AND year = \$4`).
		WithArgs("s1", "t1", 26, 2024).
		WillReturnRows(rows)

	entries, err := repo.ListForTeacherWeek(context.Background(), "s1", "t1", timetable.WeekKey{Week: 26, Year: 2024})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -1, entries[0].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupervisionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSupervisionRepository(db)

	mock.ExpectExec("INSERT INTO supervision_entries").
		WithArgs(sqlmock.AnyArg(), "s1", "t1", timetable.DayTuesday, "", timetable.SupervisionBetweenSlots, 2, 26, 2024, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &timetable.SupervisionEntry{
		SchoolID: "s1", TeacherID: "t1", Day: timetable.DayTuesday,
		Kind: timetable.SupervisionBetweenSlots, Position: 2, Week: 26, Year: 2024,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
