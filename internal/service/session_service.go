package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/dto"
	"github.com/edumarket/tutorhub-api/internal/models"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.SessionRequest) error
	FindByID(ctx context.Context, id string) (*models.SessionRequest, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionRequest, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, ts time.Time) (int64, error)
}

type sessionTutorLookup interface {
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)
}

// SessionService handles the session request lifecycle between
// students and tutors.
type SessionService struct {
	repo      sessionRepository
	tutors    sessionTutorLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(repo sessionRepository, tutors sessionTutorLookup, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, tutors: tutors, validator: validate, logger: logger}
}

// Create registers a new pending session request from a student.
func (s *SessionService) Create(ctx context.Context, studentID string, req dto.CreateSessionRequest) (*models.SessionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	if _, err := s.tutors.FindByID(ctx, req.TutorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}

	session := &models.SessionRequest{
		TutorID:         req.TutorID,
		StudentID:       studentID,
		Subject:         req.Subject,
		ScheduledDate:   req.ScheduledDate,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session request")
	}

	s.logger.Info("session requested",
		zap.String("session_id", session.ID),
		zap.String("tutor_id", session.TutorID))
	return session, nil
}

// ListForUser returns the session requests visible to the caller:
// tutors see requests addressed to their profile, students their own.
func (s *SessionService) ListForUser(ctx context.Context, claims *models.JWTClaims) ([]models.SessionRequest, error) {
	filter := models.SessionFilter{}
	switch claims.Role {
	case models.RoleTutor:
		profile, err := s.ownProfile(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		filter.TutorID = profile.ID
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleAdmin:
		// Admins see everything.
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list sessions")
	}

	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// UpdateStatus applies one lifecycle transition. Only the addressed
// tutor may act, and only pending to accepted or rejected, then
// accepted to completed.
func (s *SessionService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, sessionID string, req dto.UpdateSessionStatusRequest) (*models.SessionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if claims.Role != models.RoleTutor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only tutors can update session status")
	}
	profile, err := s.ownProfile(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if session.TutorID != profile.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the addressed tutor can update this session")
	}

	target := models.SessionStatus(req.Status)
	var from models.SessionStatus
	switch target {
	case models.SessionAccepted, models.SessionRejected:
		from = models.SessionPending
	case models.SessionCompleted:
		from = models.SessionAccepted
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported session status")
	}

	now := time.Now().UTC()
	modified, err := s.repo.UpdateStatus(ctx, sessionID, from, target, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	if modified == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is not in a state that allows this transition")
	}

	session.Status = target
	session.UpdatedAt = now
	s.logger.Info("session status updated",
		zap.String("session_id", sessionID),
		zap.String("status", string(target)))
	return session, nil
}

func (s *SessionService) ownProfile(ctx context.Context, userID string) (*models.TutorProfile, error) {
	profile, err := s.tutors.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no tutor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor profile")
	}
	return profile, nil
}
