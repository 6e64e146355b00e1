// Package auth drives the session lifecycle: sign-in, cohort selection,
// logout and account creation. It owns the ordering guarantees around session
// creation and registry registration.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/engine"
	"github.com/learnstack/backend/repository"
)

// SignInResult is returned to the client after a successful login.
type SignInResult struct {
	Session    *domain.Session `json:"session"`
	Terminated int             `json:"terminated_sessions"`
}

type UseCase struct {
	users    repository.UserRepository
	cohorts  repository.CohortRepository
	mappings repository.MappingRepository
	sessions repository.SessionRepository
	devices  *device.Service
	engine   *engine.Engine
	logger   *zap.Logger
	now      func() time.Time
}

func New(
	users repository.UserRepository,
	cohorts repository.CohortRepository,
	mappings repository.MappingRepository,
	sessions repository.SessionRepository,
	devices *device.Service,
	eng *engine.Engine,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		cohorts:  cohorts,
		mappings: mappings,
		sessions: sessions,
		devices:  devices,
		engine:   eng,
		logger:   logger,
		now:      time.Now,
	}
}

// SignIn opens a new session for the user. Prior live sessions anywhere are
// terminated when single device login is enforced.
func (uc *UseCase) SignIn(ctx context.Context, userID, cohortID, fingerprint string) (*SignInResult, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUserDeactivated
	}
	if cohortID != "" {
		if err := uc.checkEnrollment(ctx, userID, cohortID); err != nil {
			return nil, err
		}
	}

	if decision := uc.devices.CheckLoginPermission(ctx, userID, fingerprint); !decision.Allowed {
		uc.logger.Info("login denied by device policy",
			zap.String("user_id", userID),
			zap.String("reason", decision.Reason))
		return nil, domain.ErrLoginDenied
	}

	return uc.openSession(ctx, userID, cohortID, fingerprint)
}

// SelectCohort binds the user to a cohort by opening a fresh session for it.
func (uc *UseCase) SelectCohort(ctx context.Context, userID, cohortID, fingerprint string) (*SignInResult, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUserDeactivated
	}
	if err := uc.checkEnrollment(ctx, userID, cohortID); err != nil {
		return nil, err
	}

	return uc.openSession(ctx, userID, cohortID, fingerprint)
}

// Logout closes the session, releases the registry entry and evicts every
// cached artifact for the identity tuple.
func (uc *UseCase) Logout(ctx context.Context, userID, cohortID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return domain.ErrInvalidPayload
	}
	if err := uc.sessions.Close(ctx, sessionID, uc.now()); err != nil {
		return err
	}
	if err := uc.devices.DropSession(ctx, userID, sessionID); err != nil {
		uc.logger.Warn("registry release failed on logout", zap.String("user_id", userID), zap.Error(err))
	}
	uc.engine.EvictIdentity(ctx, userID, cohortID, sessionID)
	return nil
}

// SignUp creates a user account.
func (uc *UseCase) SignUp(ctx context.Context, id, email, role string) (*domain.User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if role == "" {
		role = "learner"
	}
	user := &domain.User{
		ID:     id,
		Email:  email,
		Role:   role,
		Status: domain.UserStatusActive,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// openSession creates the authoritative session row first, then lets the
// device service terminate prior sessions and take over the registry entry.
// The registry is never written before the row exists.
func (uc *UseCase) openSession(ctx context.Context, userID, cohortID, fingerprint string) (*SignInResult, error) {
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CohortID:  cohortID,
		StartedAt: uc.now(),
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	result, err := uc.devices.HandleLogin(ctx, userID, "", session.ID, fingerprint)
	if err != nil {
		return nil, err
	}

	return &SignInResult{Session: session, Terminated: result.Terminated}, nil
}

func (uc *UseCase) checkEnrollment(ctx context.Context, userID, cohortID string) error {
	mapping, err := uc.mappings.Get(ctx, userID, cohortID)
	if err != nil {
		return err
	}
	if !mapping.IsActive() {
		return domain.ErrMappingInactive
	}
	cohort, err := uc.cohorts.GetByID(ctx, cohortID)
	if err != nil {
		return err
	}
	if cohort.HasEnded(uc.now()) {
		return domain.NewError(domain.ErrCodeForbidden, "cohort has ended")
	}
	return nil
}
