// Package engine orchestrates snapshot, activity and device checks into a
// single per-request verdict, backed by a short-lived verdict cache.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/activity"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/snapshot"
	"github.com/learnstack/backend/repository"
)

// SessionContext is the caller-supplied identity for one request: the opaque
// session token and its companion ids, plus the derived device fingerprint.
type SessionContext struct {
	UserID      string
	CohortID    string
	SessionID   string
	Fingerprint string
}

func (c SessionContext) complete() bool {
	return c.UserID != "" && c.CohortID != "" && c.SessionID != ""
}

// Engine validates session contexts.
type Engine struct {
	snapshots  *snapshot.Loader
	activity   *activity.Monitor
	devices    *device.Service
	sessions   repository.SessionRepository
	cache      cache.Store
	verdictTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func New(
	snapshots *snapshot.Loader,
	monitor *activity.Monitor,
	devices *device.Service,
	sessions repository.SessionRepository,
	cacheStore cache.Store,
	verdictTTL time.Duration,
	logger *zap.Logger,
) *Engine {
	if verdictTTL <= 0 {
		verdictTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		snapshots:  snapshots,
		activity:   monitor,
		devices:    devices,
		sessions:   sessions,
		cache:      cacheStore,
		verdictTTL: verdictTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Validate decides whether the session context identifies a valid,
// non-superseded, still-active session. Any terminal denial closes the
// session and evicts the identity tuple before returning, so a denied
// session never looks live to a subsequent request.
func (e *Engine) Validate(ctx context.Context, sc SessionContext) domain.Verdict {
	if sc.UserID == "" || sc.SessionID == "" {
		return domain.InvalidVerdict(domain.CodeInvalidSession, "session context is missing")
	}
	if !sc.complete() {
		return domain.InvalidVerdict(domain.CodeInvalidSessionData, "session context is incomplete")
	}

	// Device mismatch outranks staleness: it signals an active security
	// violation, so it is checked before any cached verdict is consulted.
	if dv := e.devices.ValidateSessionDevice(ctx, sc.UserID, sc.SessionID, sc.Fingerprint); !dv.Valid {
		e.closeAndEvict(ctx, sc)
		return domain.InvalidVerdict(dv.Code, denialMessage(dv.Code))
	}

	if cached, ok := e.cachedVerdict(ctx, sc.SessionID); ok {
		// Activity has its own, shorter TTL and must never be served
		// beyond it.
		state, err := e.activity.Check(ctx, sc.UserID, sc.SessionID)
		if err != nil {
			return e.deny(ctx, sc, domain.CodeSessionNotFound, err)
		}
		if verdict, done := e.applyActivity(ctx, sc, state); done {
			return verdict
		}
		return cached
	}

	return e.fullValidation(ctx, sc)
}

func (e *Engine) fullValidation(ctx context.Context, sc SessionContext) domain.Verdict {
	session, err := e.sessions.GetByID(ctx, sc.SessionID)
	if err != nil {
		e.evictIdentityTuple(ctx, sc)
		return domain.InvalidVerdict(domain.CodeSessionNotFound, denialMessage(domain.CodeSessionNotFound))
	}
	if !session.IsLive() {
		e.evictIdentityTuple(ctx, sc)
		return domain.InvalidVerdict(domain.CodeSessionExpired, denialMessage(domain.CodeSessionExpired))
	}

	// Standing checks in fixed order; the first failure wins.
	user, err := e.snapshots.User(ctx, sc.UserID)
	if err != nil {
		return e.deny(ctx, sc, domain.CodeUserNotFound, err)
	}
	if !user.IsActive() {
		return e.deny(ctx, sc, domain.CodeUserDeactivated, nil)
	}

	mapping, err := e.snapshots.Mapping(ctx, sc.UserID, sc.CohortID)
	if err != nil {
		return e.deny(ctx, sc, domain.CodeCohortAccessDeactivated, err)
	}
	if !mapping.IsActive() {
		return e.deny(ctx, sc, domain.CodeCohortAccessDeactivated, nil)
	}

	cohort, err := e.snapshots.Cohort(ctx, sc.CohortID)
	if err != nil {
		return e.deny(ctx, sc, domain.CodeCohortNotFound, err)
	}
	if cohort.HasEnded(e.now()) {
		return e.deny(ctx, sc, domain.CodeCohortEnded, nil)
	}

	state, err := e.activity.Check(ctx, sc.UserID, sc.SessionID)
	if err != nil {
		return e.deny(ctx, sc, domain.CodeSessionNotFound, err)
	}
	if verdict, done := e.applyActivity(ctx, sc, state); done {
		return verdict
	}

	verdict := domain.ValidVerdict(sc.UserID, sc.CohortID, sc.SessionID)
	e.cacheVerdict(ctx, verdict)
	return verdict
}

// applyActivity maps a degraded activity state to its verdict. The second
// return value is false when the state is ACTIVE and validation may proceed.
func (e *Engine) applyActivity(ctx context.Context, sc SessionContext, state domain.ActivityState) (domain.Verdict, bool) {
	switch state.Kind {
	case domain.ActivityWarning:
		return domain.WarningVerdict(sc.UserID, sc.CohortID, sc.SessionID, state.MinutesRemaining), true
	case domain.ActivityTimeout:
		return e.deny(ctx, sc, domain.CodeSessionTimeout, nil), true
	case domain.ActivityMaxDuration:
		return e.deny(ctx, sc, domain.CodeMaxDurationTimeout, nil), true
	default:
		return domain.Verdict{}, false
	}
}

// deny closes the session, evicts the identity tuple and returns the denial.
func (e *Engine) deny(ctx context.Context, sc SessionContext, code domain.DenialCode, cause error) domain.Verdict {
	if cause != nil {
		e.logger.Info("session denied",
			zap.String("session_id", sc.SessionID),
			zap.String("code", string(code)),
			zap.Error(cause))
	}
	e.closeAndEvict(ctx, sc)
	return domain.InvalidVerdict(code, denialMessage(code))
}

func (e *Engine) closeAndEvict(ctx context.Context, sc SessionContext) {
	if err := e.sessions.Close(ctx, sc.SessionID, e.now()); err != nil {
		e.logger.Error("session close failed", zap.String("session_id", sc.SessionID), zap.Error(err))
	}
	if err := e.devices.DropSession(ctx, sc.UserID, sc.SessionID); err != nil {
		e.logger.Warn("registry drop failed", zap.String("user_id", sc.UserID), zap.Error(err))
	}
	e.evictIdentityTuple(ctx, sc)
}

// EvictIdentity drops every cached artifact for the identity tuple: user and
// mapping snapshots, the session verdict, and the activity state with its
// last-seen marker. Evicting twice is a no-op.
func (e *Engine) EvictIdentity(ctx context.Context, userID, cohortID, sessionID string) {
	e.evictIdentityTuple(ctx, SessionContext{UserID: userID, CohortID: cohortID, SessionID: sessionID})
}

func (e *Engine) evictIdentityTuple(ctx context.Context, sc SessionContext) {
	if sc.UserID != "" {
		if err := e.snapshots.EvictUser(ctx, sc.UserID); err != nil {
			e.logger.Warn("user snapshot eviction failed", zap.String("user_id", sc.UserID), zap.Error(err))
		}
		if sc.CohortID != "" {
			if err := e.snapshots.EvictMapping(ctx, sc.UserID, sc.CohortID); err != nil {
				e.logger.Warn("mapping snapshot eviction failed", zap.String("user_id", sc.UserID), zap.Error(err))
			}
		}
	}
	if sc.SessionID != "" {
		if err := e.cache.Delete(ctx, verdictKey(sc.SessionID)); err != nil {
			e.logger.Warn("verdict eviction failed", zap.String("session_id", sc.SessionID), zap.Error(err))
		}
		if err := e.activity.Evict(ctx, sc.SessionID); err != nil {
			e.logger.Warn("activity eviction failed", zap.String("session_id", sc.SessionID), zap.Error(err))
		}
	}
}

func (e *Engine) cachedVerdict(ctx context.Context, sessionID string) (domain.Verdict, bool) {
	payload, found, err := e.cache.Get(ctx, verdictKey(sessionID))
	if err != nil {
		e.logger.Warn("verdict cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		return domain.Verdict{}, false
	}
	if !found {
		return domain.Verdict{}, false
	}
	var verdict domain.Verdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		_ = e.cache.Delete(ctx, verdictKey(sessionID))
		return domain.Verdict{}, false
	}
	if !verdict.Cacheable() {
		// Only clean valid verdicts are ever written; anything else is
		// a stale artifact.
		_ = e.cache.Delete(ctx, verdictKey(sessionID))
		return domain.Verdict{}, false
	}
	return verdict, true
}

func (e *Engine) cacheVerdict(ctx context.Context, verdict domain.Verdict) {
	if !verdict.Cacheable() {
		return
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, verdictKey(verdict.SessionID), payload, e.verdictTTL); err != nil {
		e.logger.Warn("verdict cache write failed", zap.String("session_id", verdict.SessionID), zap.Error(err))
	}
}

func verdictKey(sessionID string) string {
	return "verdict:session:" + sessionID
}

func denialMessage(code domain.DenialCode) string {
	switch code {
	case domain.CodeUserNotFound:
		return "user account no longer exists"
	case domain.CodeUserDeactivated:
		return "user account has been deactivated"
	case domain.CodeCohortAccessDeactivated:
		return "cohort access has been deactivated"
	case domain.CodeCohortNotFound:
		return "cohort no longer exists"
	case domain.CodeCohortEnded:
		return "cohort has ended"
	case domain.CodeSessionNotFound:
		return "session not found"
	case domain.CodeSessionExpired:
		return "session has expired"
	case domain.CodeSessionTimeout:
		return "session timed out due to inactivity"
	case domain.CodeMaxDurationTimeout:
		return "session exceeded the maximum allowed duration"
	case domain.CodeSessionTerminatedNewLogin:
		return "session terminated by a newer login on another device"
	case domain.CodeDeviceMismatch:
		return "session is bound to a different device"
	case domain.CodeDeviceValidationError:
		return "device validation is temporarily unavailable"
	default:
		return "session is invalid"
	}
}
