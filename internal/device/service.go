// Package device owns the single-active-session invariant: fingerprinting,
// login permission checks, session registration and termination, and the
// per-request device-match validation.
package device

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/repository"
)

// Decision is the outcome of a pre-login permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// LoginResult reports the outcome of the state-changing half of a login.
type LoginResult struct {
	Success    bool
	Terminated int
	Message    string
}

// Validation is the outcome of a per-request device check.
type Validation struct {
	Valid bool
	Code  domain.DenialCode
}

// Service enforces single device login against the active session registry.
// When disabled via configuration every operation is a pass-through no-op.
type Service struct {
	enabled  bool
	registry repository.RegistryRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(
	enabled bool,
	registry repository.RegistryRepository,
	sessions repository.SessionRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		enabled:  enabled,
		registry: registry,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// CheckLoginPermission consults the registry before any state changes. A first
// login (no registry entry) is always allowed; so is a login while the
// registry backend is unreachable, since the authoritative cleanup happens in
// HandleLogin anyway.
func (s *Service) CheckLoginPermission(ctx context.Context, userID, fingerprint string) Decision {
	if !s.Enabled() {
		return Decision{Allowed: true}
	}

	entry, err := s.registry.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrEntryNotFound) {
			s.logger.Warn("registry read failed during login check", zap.String("user_id", userID), zap.Error(err))
		}
		return Decision{Allowed: true}
	}

	if entry.Fingerprint == fingerprint {
		return Decision{Allowed: true, Reason: "same device re-login"}
	}
	return Decision{Allowed: true, Reason: "existing session on another device will be terminated"}
}

// HandleLogin closes every prior live session for the user (optionally scoped
// to a cohort) and replaces the registry entry with the new session. Safe to
// call concurrently for the same user: closes are idempotent and the registry
// replace is last-writer-wins.
func (s *Service) HandleLogin(ctx context.Context, userID, cohortID, sessionID, fingerprint string) (LoginResult, error) {
	if !s.Enabled() {
		return LoginResult{Success: true}, nil
	}
	if userID == "" || sessionID == "" {
		return LoginResult{Message: "missing user or session id"}, domain.ErrInvalidPayload
	}

	live, err := s.sessions.FindLiveByUser(ctx, userID, cohortID)
	if err != nil {
		return LoginResult{Message: "live session lookup failed"}, err
	}

	now := s.now()
	terminated := 0
	for _, prior := range live {
		if prior.ID == sessionID {
			continue
		}
		if err := s.sessions.Close(ctx, prior.ID, now); err != nil {
			return LoginResult{Terminated: terminated, Message: "prior session close failed"}, err
		}
		terminated++
	}

	entry := &domain.RegistryEntry{
		UserID:       userID,
		SessionID:    sessionID,
		CohortID:     cohortID,
		Fingerprint:  fingerprint,
		RegisteredAt: now,
	}
	if err := s.registry.Replace(ctx, entry); err != nil {
		return LoginResult{Terminated: terminated, Message: "registry replace failed"}, err
	}

	if terminated > 0 {
		s.logger.Info("terminated prior sessions on new login",
			zap.String("user_id", userID),
			zap.Int("count", terminated))
	}
	return LoginResult{Success: true, Terminated: terminated}, nil
}

// ValidateSessionDevice is the per-request check. The three failure modes are
// surfaced with distinct codes: the registry entry is gone (session no longer
// sanctioned), the entry names a newer session (superseded by another login),
// or the fingerprint differs (same token used from a different device).
func (s *Service) ValidateSessionDevice(ctx context.Context, userID, sessionID, fingerprint string) Validation {
	if !s.Enabled() {
		return Validation{Valid: true}
	}

	entry, err := s.registry.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return Validation{Code: domain.CodeSessionExpired}
		}
		s.logger.Error("registry read failed during device validation", zap.String("user_id", userID), zap.Error(err))
		return Validation{Code: domain.CodeDeviceValidationError}
	}

	if entry.SessionID != sessionID {
		return Validation{Code: domain.CodeSessionTerminatedNewLogin}
	}
	if entry.Fingerprint != fingerprint {
		return Validation{Code: domain.CodeDeviceMismatch}
	}
	return Validation{Valid: true}
}

// RegisterActiveSession idempotently rewrites the registry entry. Callers
// invoke it only after the session row has been durably created.
func (s *Service) RegisterActiveSession(ctx context.Context, userID, sessionID, cohortID, fingerprint string) error {
	if !s.Enabled() {
		return nil
	}
	return s.registry.Replace(ctx, &domain.RegistryEntry{
		UserID:       userID,
		SessionID:    sessionID,
		CohortID:     cohortID,
		Fingerprint:  fingerprint,
		RegisteredAt: s.now(),
	})
}

// DropSession removes the registry entry if it still refers to the given
// session. A concurrent newer login keeps its own entry.
func (s *Service) DropSession(ctx context.Context, userID, sessionID string) error {
	if !s.Enabled() {
		return nil
	}
	entry, err := s.registry.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return nil
		}
		return err
	}
	if entry.SessionID != sessionID {
		return nil
	}
	return s.registry.Remove(ctx, userID)
}
