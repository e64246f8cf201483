package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edumarket/tutorhub-api/internal/models"
)

const notificationColumns = "id, application_id, kind, recipient, payload, status, attempts, last_error, next_attempt_at, created_at, sent_at"

// OutboxRepository serves the notification dispatcher. Rows are
// written by ApplicationRepository.Resolve inside the transition
// transaction; this repository only claims and settles them.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new instance of OutboxRepository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimDue atomically claims queued notifications whose next attempt
// time has passed, oldest first. Claiming bumps the attempt counter
// and pushes next_attempt_at forward so a crashed dispatcher only
// delays delivery instead of losing it; SKIP LOCKED keeps concurrent
// dispatchers off the same rows.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, reclaimAfter time.Duration) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`UPDATE notification_outbox SET attempts = attempts + 1, next_attempt_at = $3
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE status = $1 AND next_attempt_at <= $2
			ORDER BY next_attempt_at ASC LIMIT %d FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, limit, notificationColumns)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, models.NotificationQueued, now, now.Add(reclaimAfter)); err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}
	return notifications, nil
}

// MarkSent records a successful delivery.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE notification_outbox SET status = $2, sent_at = $3, last_error = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.NotificationSent, sentAt); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. Until attempts reach the
// configured maximum the row stays queued with a pushed-back next
// attempt; after that it goes to failed and the dispatcher stops
// picking it up. Attempts were already counted at claim time.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, maxAttempts int, sendErr string, nextAttemptAt time.Time) error {
	status := models.NotificationQueued
	if attempts >= maxAttempts {
		status = models.NotificationFailed
	}
	const query = `UPDATE notification_outbox SET status = $2, last_error = $3, next_attempt_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, sendErr, nextAttemptAt); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
