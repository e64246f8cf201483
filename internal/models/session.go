package models

import "time"

// SessionStatus is the lifecycle state of a session request.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionAccepted  SessionStatus = "accepted"
	SessionRejected  SessionStatus = "rejected"
	SessionCompleted SessionStatus = "completed"
)

// SessionRequest is a student's request for a tutoring session.
type SessionRequest struct {
	ID              string        `db:"id" json:"id"`
	TutorID         string        `db:"tutor_id" json:"tutor_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Subject         string        `db:"subject" json:"subject"`
	ScheduledDate   string        `db:"scheduled_date" json:"scheduled_date"`
	StartTime       string        `db:"start_time" json:"start_time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Status          SessionStatus `db:"status" json:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter narrows session listings to one party.
type SessionFilter struct {
	TutorID   string
	StudentID string
	Status    SessionStatus
}
