package services

import (
	"context"
	"encoding/json"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/infrastructure/buffer"
	"github.com/learnstack/backend/usecase"
)

// ActionRecorder adapts the processor to the use-case facing port.
type ActionRecorder struct {
	processor *ActionProcessor
}

func NewActionRecorder(processor *ActionProcessor) *ActionRecorder {
	return &ActionRecorder{processor: processor}
}

func (r *ActionRecorder) BufferAction(ctx context.Context, action *domain.Action) error {
	if r.processor == nil || action == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(action)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:     action.ID,
		UserID: action.UserID,
		Entity: buffer.EntityAction,
		Data:   payload,
	}
	return r.processor.BufferOperation(ctx, item)
}

var _ usecase.ActionBuffer = (*ActionRecorder)(nil)
