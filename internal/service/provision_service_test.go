package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumarket/tutorhub-api/internal/models"
)

type mockProvisionUsers struct {
	byEmail    map[string]*models.User
	createErrs []error
	created    []models.User
	verified   []string
}

func (m *mockProvisionUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.byEmail[email]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProvisionUsers) Create(ctx context.Context, user *models.User) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	m.created = append(m.created, *user)
	return nil
}

func (m *mockProvisionUsers) MarkVerified(ctx context.Context, id string) error {
	m.verified = append(m.verified, id)
	return nil
}

func TestProvisionServiceCreatesAccount(t *testing.T) {
	users := &mockProvisionUsers{}
	svc := NewProvisionService(users, zap.NewNop())

	phone := "+15550100"
	result, err := svc.Provision(context.Background(), &models.TutorApplication{
		ID:       "a1",
		FullName: "Aisha Khan",
		Email:    "aisha@example.com",
		Phone:    &phone,
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEmpty(t, result.Password)
	assert.Len(t, result.Password, 12)

	require.Len(t, users.created, 1)
	created := users.created[0]
	assert.Equal(t, models.RoleTutor, created.Role)
	assert.True(t, created.Verified)
	assert.True(t, created.Active)
	require.NotNil(t, created.Phone)

	// The stored hash must verify against the returned plaintext.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte(result.Password)))
}

func TestProvisionServiceReusesExistingAccount(t *testing.T) {
	users := &mockProvisionUsers{
		byEmail: map[string]*models.User{
			"aisha@example.com": {ID: "u1", Email: "aisha@example.com", Role: models.RoleStudent},
		},
	}
	svc := NewProvisionService(users, zap.NewNop())

	result, err := svc.Provision(context.Background(), &models.TutorApplication{
		ID:    "a1",
		Email: "aisha@example.com",
	})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "u1", result.UserID)
	assert.Empty(t, result.Password)
	assert.Equal(t, []string{"u1"}, users.verified)
	assert.Empty(t, users.created)
}

func TestProvisionServiceRetriesWithoutPhone(t *testing.T) {
	users := &mockProvisionUsers{
		createErrs: []error{&pq.Error{Code: "23505", Constraint: "users_phone_key"}, nil},
	}
	svc := NewProvisionService(users, zap.NewNop())

	phone := "+15550100"
	result, err := svc.Provision(context.Background(), &models.TutorApplication{
		ID:    "a1",
		Email: "aisha@example.com",
		Phone: &phone,
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	require.Len(t, users.created, 1)
	assert.Nil(t, users.created[0].Phone)
}

func TestProvisionServiceEmailRaceFallsBack(t *testing.T) {
	users := &raceProvisionUsers{
		mockProvisionUsers: &mockProvisionUsers{
			createErrs: []error{&pq.Error{Code: "23505", Constraint: "users_email_key"}},
		},
		appear: &models.User{ID: "u2", Email: "aisha@example.com"},
	}
	svc := NewProvisionService(users, zap.NewNop())

	result, err := svc.Provision(context.Background(), &models.TutorApplication{
		ID:    "a1",
		Email: "aisha@example.com",
	})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "u2", result.UserID)
}

// raceProvisionUsers makes the account appear only after the first
// lookup, mimicking a concurrent provisioner.
type raceProvisionUsers struct {
	*mockProvisionUsers
	appear  *models.User
	lookups int
}

func (m *raceProvisionUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.lookups++
	if m.lookups == 1 {
		return nil, sql.ErrNoRows
	}
	cp := *m.appear
	return &cp, nil
}
