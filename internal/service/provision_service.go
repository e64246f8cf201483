package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/internal/repository"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
)

type provisionUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	MarkVerified(ctx context.Context, id string) error
}

// ProvisionResult reports what the provisioner did for one approval.
// Password is set only when Created is true; existing accounts never
// get a new credential.
type ProvisionResult struct {
	UserID   string
	Created  bool
	Password string
}

// ProvisionService turns an approved application into a TUTOR account.
// Provisioning is idempotent on email: re-approving after a partial
// failure reuses the account that already exists.
type ProvisionService struct {
	users  provisionUserRepository
	logger *zap.Logger
}

// NewProvisionService constructs a ProvisionService.
func NewProvisionService(users provisionUserRepository, logger *zap.Logger) *ProvisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisionService{users: users, logger: logger}
}

const passwordCharset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordCharset))))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordCharset[n.Int64()])
	}
	return b.String(), nil
}

// Provision ensures a verified, active TUTOR account exists for the
// applicant. On a fresh account it returns the generated plaintext
// password so the approval email can carry it.
func (s *ProvisionService) Provision(ctx context.Context, app *models.TutorApplication) (*ProvisionResult, error) {
	existing, err := s.users.FindByEmail(ctx, app.Email)
	if err == nil {
		if err := s.users.MarkVerified(ctx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify existing account")
		}
		s.logger.Info("provisioning reused existing account",
			zap.String("user_id", existing.ID),
			zap.String("application_id", app.ID))
		return &ProvisionResult{UserID: existing.ID, Created: false}, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up account")
	}

	password, err := generatePassword(12)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credential")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credential")
	}

	user := &models.User{
		Email:        app.Email,
		PasswordHash: string(hash),
		FullName:     app.FullName,
		Phone:        app.Phone,
		Role:         models.RoleTutor,
		Verified:     true,
		Active:       true,
	}

	err = s.users.Create(ctx, user)
	if constraint, ok := repository.UniqueViolation(err); ok {
		// A phone collision must not block onboarding; retry without
		// the number. An email collision means another writer won the
		// race, so fall back to that account.
		if strings.Contains(constraint, "phone") {
			user.ID = ""
			user.Phone = nil
			err = s.users.Create(ctx, user)
		} else {
			existing, lookupErr := s.users.FindByEmail(ctx, app.Email)
			if lookupErr != nil {
				return nil, appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting account")
			}
			return &ProvisionResult{UserID: existing.ID, Created: false}, nil
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.logger.Info("provisioned tutor account",
		zap.String("user_id", user.ID),
		zap.String("application_id", app.ID))
	return &ProvisionResult{UserID: user.ID, Created: true, Password: password}, nil
}
