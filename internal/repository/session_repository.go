package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumarket/tutorhub-api/internal/models"
)

const sessionColumns = "id, tutor_id, student_id, subject, scheduled_date, start_time, duration_minutes, status, created_at, updated_at"

// SessionRepository provides database access for session requests.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new pending session request.
func (r *SessionRepository) Create(ctx context.Context, session *models.SessionRequest) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Status = models.SessionPending
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO session_requests (id, tutor_id, student_id, subject, scheduled_date, start_time, duration_minutes, status, created_at, updated_at)
		VALUES (:id, :tutor_id, :student_id, :subject, :scheduled_date, :start_time, :duration_minutes, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	return nil
}

// FindByID returns a session request by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.SessionRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM session_requests WHERE id = $1 LIMIT 1", sessionColumns)
	var session models.SessionRequest
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns session requests for one party, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionRequest, error) {
	base := "FROM session_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC", sessionColumns, base)
	var sessions []models.SessionRequest
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list session requests: %w", err)
	}
	return sessions, nil
}

// UpdateStatus flips a session request from one status to another. The
// predicate is gated on the expected current status; a zero count means
// the row is missing or no longer in that state.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, ts time.Time) (int64, error) {
	const query = `UPDATE session_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, to, ts, from)
	if err != nil {
		return 0, fmt.Errorf("update session status: %w", err)
	}
	modified, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session status rows affected: %w", err)
	}
	return modified, nil
}
