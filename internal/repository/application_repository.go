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

// ApplicationRepository manages persistence for tutor applications,
// their document metadata, and the notification outbox rows written
// alongside status transitions.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = "id, full_name, email, phone, subjects, bio, hourly_rate, mode, status, created_at, approved_at, rejected_at"

// Submit inserts a new pending application together with its document
// metadata rows in one transaction and returns the generated id.
func (r *ApplicationRepository) Submit(ctx context.Context, app *models.TutorApplication, docs []models.ApplicationDocument) (string, error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.Status = models.ApplicationPending
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertApp = `INSERT INTO tutor_applications (id, full_name, email, phone, subjects, bio, hourly_rate, mode, status, created_at)
		VALUES (:id, :full_name, :email, :phone, :subjects, :bio, :hourly_rate, :mode, :status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertApp, app); err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}

	const insertDoc = `INSERT INTO application_documents (id, application_id, kind, position, object_key, file_name, mime_type, size_bytes, created_at)
		VALUES (:id, :application_id, :kind, :position, :object_key, :file_name, :mime_type, :size_bytes, :created_at)`
	for i := range docs {
		doc := &docs[i]
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.ApplicationID = app.ID
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = app.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, insertDoc, doc); err != nil {
			return "", fmt.Errorf("insert application document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit submit tx: %w", err)
	}
	return app.ID, nil
}

// FindByID fetches an application by id.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.TutorApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_applications WHERE id = $1", applicationColumns)
	var app models.TutorApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListPending returns all pending applications with their document
// metadata. Document payloads live in object storage and are never
// part of this projection.
func (r *ApplicationRepository) ListPending(ctx context.Context) ([]models.PendingApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_applications WHERE status = $1 ORDER BY created_at ASC", applicationColumns)
	var apps []models.TutorApplication
	if err := r.db.SelectContext(ctx, &apps, query, models.ApplicationPending); err != nil {
		return nil, fmt.Errorf("list pending applications: %w", err)
	}
	result := make([]models.PendingApplication, 0, len(apps))
	for _, app := range apps {
		docs, err := r.ListDocuments(ctx, app.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, models.PendingApplication{TutorApplication: app, Documents: docs})
	}
	return result, nil
}

// List returns applications matching the filter along with total count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.TutorApplication, int, error) {
	base := "FROM tutor_applications WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"email":      "email",
		"created_at": "created_at",
		"status":     "status",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", applicationColumns, base, column, order, size, offset)
	var apps []models.TutorApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	return apps, total, nil
}

// ListDocuments returns the document metadata rows for one application.
func (r *ApplicationRepository) ListDocuments(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	const query = `SELECT id, application_id, kind, position, object_key, file_name, mime_type, size_bytes, created_at
		FROM application_documents WHERE application_id = $1 ORDER BY kind, position`
	var docs []models.ApplicationDocument
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

// FindDocument fetches one document slot by kind and position.
func (r *ApplicationRepository) FindDocument(ctx context.Context, applicationID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, error) {
	const query = `SELECT id, application_id, kind, position, object_key, file_name, mime_type, size_bytes, created_at
		FROM application_documents WHERE application_id = $1 AND kind = $2 AND position = $3`
	var doc models.ApplicationDocument
	if err := r.db.GetContext(ctx, &doc, query, applicationID, kind, position); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Resolve flips a pending application into a terminal status and
// writes the outcome notification to the outbox in the same
// transaction. The update predicate is gated on status = 'pending' so
// of two racing resolvers exactly one observes a modified row; the
// returned count lets the caller distinguish the loser.
func (r *ApplicationRepository) Resolve(ctx context.Context, id string, status models.ApplicationStatus, resolvedAt time.Time, notification *models.Notification) (int64, error) {
	var stampColumn string
	switch status {
	case models.ApplicationApproved:
		stampColumn = "approved_at"
	case models.ApplicationRejected:
		stampColumn = "rejected_at"
	default:
		return 0, fmt.Errorf("resolve requires a terminal status, got %q", status)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("UPDATE tutor_applications SET status = $2, %s = $3 WHERE id = $1 AND status = $4", stampColumn)
	res, err := tx.ExecContext(ctx, query, id, status, resolvedAt, models.ApplicationPending)
	if err != nil {
		return 0, fmt.Errorf("resolve application: %w", err)
	}
	modified, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve rows affected: %w", err)
	}
	if modified == 0 {
		// Leave the ambiguity between missing and already resolved
		// to the caller, which can re-read the row.
		return 0, nil
	}

	if notification != nil {
		if notification.ID == "" {
			notification.ID = uuid.NewString()
		}
		notification.ApplicationID = id
		notification.Status = models.NotificationQueued
		if notification.CreatedAt.IsZero() {
			notification.CreatedAt = resolvedAt
		}
		if notification.NextAttemptAt.IsZero() {
			notification.NextAttemptAt = resolvedAt
		}
		const insertOutbox = `INSERT INTO notification_outbox (id, application_id, kind, recipient, payload, status, attempts, next_attempt_at, created_at)
			VALUES (:id, :application_id, :kind, :recipient, :payload, :status, :attempts, :next_attempt_at, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertOutbox, notification); err != nil {
			return 0, fmt.Errorf("enqueue outcome notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit resolve tx: %w", err)
	}
	return modified, nil
}
