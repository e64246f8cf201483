package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarket/tutorhub-api/internal/models"
)

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO session_requests").
		WithArgs(sqlmock.AnyArg(), "tutor-1", "student-1", "math", "2026-09-10", "15:00", 60,
			string(models.SessionPending), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.SessionRequest{
		TutorID:         "tutor-1",
		StudentID:       "student-1",
		Subject:         "math",
		ScheduledDate:   "2026-09-10",
		StartTime:       "15:00",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatusGuarded(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("s1", string(models.SessionAccepted), ts, string(models.SessionPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	modified, err := repo.UpdateStatus(context.Background(), "s1", models.SessionPending, models.SessionAccepted, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	// A second accept finds no pending row left.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("s1", string(models.SessionAccepted), ts, string(models.SessionPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	modified, err = repo.UpdateStatus(context.Background(), "s1", models.SessionPending, models.SessionAccepted, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), modified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByTutor(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tutor_id", "student_id", "subject", "scheduled_date", "start_time", "duration_minutes", "status", "created_at", "updated_at"}).
		AddRow("s1", "tutor-1", "student-1", "math", "2026-09-10", "15:00", 60, "pending", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM session_requests WHERE 1=1 AND tutor_id = $1 ORDER BY created_at DESC")).
		WithArgs("tutor-1").
		WillReturnRows(rows)

	sessions, err := repo.List(context.Background(), models.SessionFilter{TutorID: "tutor-1"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionPending, sessions[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
