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

const tutorColumns = "id, user_id, full_name, subjects, bio, hourly_rate, rating, mode, created_at, updated_at"

// TutorRepository provides database access to the public tutor
// directory.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a new instance of TutorRepository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// Create inserts a directory profile for a newly approved tutor.
func (r *TutorRepository) Create(ctx context.Context, profile *models.TutorProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.Mode == "" {
		profile.Mode = models.ModeOnline
	}

	const query = `INSERT INTO tutor_profiles (id, user_id, full_name, subjects, bio, hourly_rate, rating, mode, created_at, updated_at)
		VALUES (:id, :user_id, :full_name, :subjects, :bio, :hourly_rate, :rating, :mode, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create tutor profile: %w", err)
	}
	return nil
}

// FindByUserID returns the directory profile owned by a user account.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_profiles WHERE user_id = $1 LIMIT 1", tutorColumns)
	var profile models.TutorProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByID returns one directory profile.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.TutorProfile, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_profiles WHERE id = $1 LIMIT 1", tutorColumns)
	var profile models.TutorProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns directory profiles matching the filter with total count.
// Subject matching is a case-insensitive substring over the
// comma-separated subjects column.
func (r *TutorRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error) {
	base := "FROM tutor_profiles WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(subjects) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
	}
	if filter.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)+1))
		args = append(args, *filter.MinRating)
	}
	if filter.Mode != "" {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", len(args)+1))
		args = append(args, filter.Mode)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY rating DESC, full_name ASC LIMIT %d OFFSET %d", tutorColumns, base, pageSize, offset)
	var profiles []models.TutorProfile
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutor profiles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutor profiles: %w", err)
	}

	return profiles, total, nil
}
