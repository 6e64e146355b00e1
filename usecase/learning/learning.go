// Package learning holds the protected endpoints' thin use cases. Content and
// assignment data live in external services; this package only records the
// learner actions that feed activity tracking.
package learning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/activity"
	"github.com/learnstack/backend/usecase"
)

// Identity is the validated identity tuple attached by the gatekeeper.
type Identity struct {
	UserID    string
	CohortID  string
	SessionID string
}

func (id Identity) valid() bool {
	return id.UserID != "" && id.SessionID != ""
}

// Action kinds recorded by the learning endpoints.
const (
	ActionContentView    = "content_view"
	ActionAttempt        = "attempt"
	ActionSubmission     = "submission"
	ActionProgressUpdate = "progress_update"
)

type UseCase struct {
	buffer  usecase.ActionBuffer
	monitor *activity.Monitor
	logger  *zap.Logger
	now     func() time.Time
}

func New(buffer usecase.ActionBuffer, monitor *activity.Monitor, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		buffer:  buffer,
		monitor: monitor,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordAction buffers a learner action and refreshes the session's activity
// marker so an engaged user is never spuriously warned or timed out.
func (uc *UseCase) RecordAction(ctx context.Context, id Identity, kind, subjectID string) (*domain.Action, error) {
	if !id.valid() {
		return nil, domain.ErrInvalidPayload
	}

	now := uc.now()
	action := &domain.Action{
		ID:        uuid.NewString(),
		UserID:    id.UserID,
		SessionID: id.SessionID,
		Kind:      kind,
		SubjectID: subjectID,
		StartedAt: now,
		EndedAt:   now,
	}

	if err := uc.buffer.BufferAction(ctx, action); err != nil {
		return nil, err
	}

	if err := uc.monitor.Touch(ctx, id.SessionID); err != nil {
		uc.logger.Warn("activity touch failed", zap.String("session_id", id.SessionID), zap.Error(err))
	}
	return action, nil
}
