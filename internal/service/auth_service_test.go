package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumarket/tutorhub-api/internal/models"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
)

type mockAuthUsers struct {
	users         map[string]*models.User
	tokens        map[string]*models.RefreshToken
	revokedIDs    []string
	lastLoginIDs  []string
	passwordHash  string
	auditActions  []string
	revokeAllUser string
}

func newMockAuthUsers() *mockAuthUsers {
	return &mockAuthUsers{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
	}
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginIDs = append(m.lastLoginIDs, id)
	return nil
}

func (m *mockAuthUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHash = passwordHash
	return nil
}

func (m *mockAuthUsers) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokeAllUser = userID
	return nil
}

func (m *mockAuthUsers) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.tokens[token.Token] = &cp
	return nil
}

func (m *mockAuthUsers) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedIDs = append(m.revokedIDs, id)
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthUsers) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "tutorhub-api",
	})
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		FullName:     "Site Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
	svc := newTestAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Contains(t, repo.lastLoginIDs, "u1")
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "tutorhub-api", claims.Issuer)
}

func TestAuthServiceLoginBadPassword(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		Active:       true,
	}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "tutor@example.com",
		PasswordHash: hashPassword(t, "temp-pass"),
		Role:         models.RoleTutor,
		Active:       false,
	}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "tutor@example.com",
		Password: "temp-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotation(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		Role:         models.RoleAdmin,
		Active:       true,
	}
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token was rotated out; replaying it must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	claims, err := svc.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestAuthServiceRefreshUnknownToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthUsers())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: "no-such-token",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		Active:       true,
	}
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "u1", "127.0.0.1", "cli"))
	assert.Len(t, repo.revokedIDs, 1)
	assert.Contains(t, repo.auditActions, models.AuditActionLogout)

	// Another user cannot revoke someone else's session.
	login2, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	err = svc.Logout(context.Background(), login2.RefreshToken, "u2", "127.0.0.1", "cli")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "tutor@example.com",
		PasswordHash: hashPassword(t, "temp-pass"),
		Role:         models.RoleTutor,
		Active:       true,
	}
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "longer-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "temp-pass",
		NewPassword: "longer-password",
	})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHash), []byte("longer-password")))
	assert.Equal(t, "u1", repo.revokeAllUser)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthUsers()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "correct horse"),
		Active:       true,
	}
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)

	other := newTestAuthService(repo)
	other.config.AccessTokenSecret = "different-secret"
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
}
