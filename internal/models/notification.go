package models

import "time"

// NotificationKind distinguishes the outcome emails.
type NotificationKind string

const (
	NotificationApproval  NotificationKind = "approval"
	NotificationRejection NotificationKind = "rejection"
)

// NotificationStatus tracks outbox delivery progress.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "queued"
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// Notification is one outbox row. It is written in the same
// transaction as the status transition that caused it, so every
// approval or rejection has a durable delivery record.
type Notification struct {
	ID            string             `db:"id" json:"id"`
	ApplicationID string             `db:"application_id" json:"application_id"`
	Kind          NotificationKind   `db:"kind" json:"kind"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Payload       []byte             `db:"payload" json:"-"`
	Status        NotificationStatus `db:"status" json:"status"`
	Attempts      int                `db:"attempts" json:"attempts"`
	LastError     *string            `db:"last_error" json:"last_error,omitempty"`
	NextAttemptAt time.Time          `db:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	SentAt        *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
}

// NotificationPayload is the JSON body stored in the outbox row,
// sufficient to render the email without re-reading the application.
type NotificationPayload struct {
	FullName string `json:"full_name"`
	Password string `json:"password,omitempty"`
}
