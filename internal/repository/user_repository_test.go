package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarket/tutorhub-api/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "phone", "role", "verified", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "aisha@example.com", "hash", "Aisha Khan", nil, "TUTOR", true, true, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("aisha@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "aisha@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	pqErr := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(pqErr)

	err := repo.Create(context.Background(), &models.User{
		Email:    "aisha@example.com",
		FullName: "Aisha Khan",
		Role:     models.RoleTutor,
		Active:   true,
	})
	require.Error(t, err)

	constraint, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	_, ok = UniqueViolation(errors.New("plain error"))
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
