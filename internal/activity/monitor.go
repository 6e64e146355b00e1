// Package activity derives a session's activity state from its start time and
// the user's most recent recorded actions.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/repository"
)

const latestActionsLimit = 20

// Config carries the activity thresholds.
type Config struct {
	// InactivityTimeout closes the session once no action has been seen for
	// this long.
	InactivityTimeout time.Duration
	// WarningLead is how long before the timeout a warning starts firing.
	WarningLead time.Duration
	// MaxDuration is the absolute session cap measured from session start,
	// regardless of activity.
	MaxDuration time.Duration
	// VerdictTTL bounds how long a computed state may be served from cache.
	VerdictTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = 60 * time.Minute
	}
	if c.WarningLead <= 0 {
		c.WarningLead = 5 * time.Minute
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 8 * time.Hour
	}
	if c.VerdictTTL <= 0 {
		c.VerdictTTL = 5 * time.Minute
	}
	return c
}

// Monitor computes and caches per-session activity states.
type Monitor struct {
	sessions repository.SessionRepository
	actions  repository.ActionRepository
	cache    cache.Store
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewMonitor(
	sessions repository.SessionRepository,
	actions repository.ActionRepository,
	cacheStore cache.Store,
	cfg Config,
	logger *zap.Logger,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		sessions: sessions,
		actions:  actions,
		cache:    cacheStore,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Check returns the session's activity state, serving a cached state when one
// is within its TTL. Cache backend failures degrade to a recompute.
func (m *Monitor) Check(ctx context.Context, userID, sessionID string) (domain.ActivityState, error) {
	if cached, ok := m.cachedState(ctx, sessionID); ok {
		return cached, nil
	}

	state, err := m.compute(ctx, userID, sessionID)
	if err != nil {
		return domain.ActivityState{}, err
	}

	if payload, err := json.Marshal(state); err == nil {
		if err := m.cache.Set(ctx, stateKey(sessionID), payload, m.cfg.VerdictTTL); err != nil {
			m.logger.Warn("activity state cache write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return state, nil
}

// Touch records fresh activity for the session: the cached state is evicted
// and a last-seen marker is written so an engaged user is never spuriously
// warned while the action itself is still in flight to the store.
func (m *Monitor) Touch(ctx context.Context, sessionID string) error {
	if err := m.cache.Delete(ctx, stateKey(sessionID)); err != nil {
		return err
	}
	marker, _ := json.Marshal(m.now())
	return m.cache.Set(ctx, lastSeenKey(sessionID), marker, m.cfg.InactivityTimeout)
}

// Evict drops both the cached state and the last-seen marker for the session.
func (m *Monitor) Evict(ctx context.Context, sessionID string) error {
	return m.cache.Delete(ctx, stateKey(sessionID), lastSeenKey(sessionID))
}

func (m *Monitor) compute(ctx context.Context, userID, sessionID string) (domain.ActivityState, error) {
	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.ActivityState{}, err
	}

	now := m.now()
	if now.Sub(session.StartedAt) >= m.cfg.MaxDuration {
		return domain.ActivityState{Kind: domain.ActivityMaxDuration}, nil
	}

	lastActivity := m.lastActivity(ctx, session)
	idle := now.Sub(lastActivity)

	switch {
	case idle >= m.cfg.InactivityTimeout:
		return domain.ActivityState{Kind: domain.ActivityTimeout}, nil
	case idle >= m.cfg.InactivityTimeout-m.cfg.WarningLead:
		// Round up so a session idle for just over 56 minutes still
		// reports 4 minutes left, not 3.
		left := m.cfg.InactivityTimeout - idle
		remaining := int((left + time.Minute - 1) / time.Minute)
		return domain.ActivityState{Kind: domain.ActivityWarning, MinutesRemaining: remaining}, nil
	default:
		return domain.ActivityState{Kind: domain.ActivityActive}, nil
	}
}

// lastActivity is the most recent action end time after session start,
// defaulting to the start itself. The last-seen marker covers actions that
// were reported but not yet flushed to the store.
func (m *Monitor) lastActivity(ctx context.Context, session *domain.Session) time.Time {
	last := session.StartedAt

	timestamps, err := m.actions.LatestEndTimes(ctx, session.UserID, latestActionsLimit)
	if err != nil {
		m.logger.Warn("latest action lookup failed", zap.String("user_id", session.UserID), zap.Error(err))
	}
	for _, ts := range timestamps {
		if ts.After(last) {
			last = ts
		}
	}

	if payload, found, err := m.cache.Get(ctx, lastSeenKey(session.ID)); err == nil && found {
		var marker time.Time
		if json.Unmarshal(payload, &marker) == nil && marker.After(last) {
			last = marker
		}
	}
	return last
}

func (m *Monitor) cachedState(ctx context.Context, sessionID string) (domain.ActivityState, bool) {
	payload, found, err := m.cache.Get(ctx, stateKey(sessionID))
	if err != nil {
		m.logger.Warn("activity state cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		return domain.ActivityState{}, false
	}
	if !found {
		return domain.ActivityState{}, false
	}
	var state domain.ActivityState
	if err := json.Unmarshal(payload, &state); err != nil {
		_ = m.cache.Delete(ctx, stateKey(sessionID))
		return domain.ActivityState{}, false
	}
	return state, true
}

func stateKey(sessionID string) string {
	return "activity:state:" + sessionID
}

func lastSeenKey(sessionID string) string {
	return "activity:lastseen:" + sessionID
}
