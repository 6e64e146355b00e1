package usecase

import (
	"context"

	"github.com/learnstack/backend/domain"
)

// ActionBuffer abstracts the durable action pipeline so use cases stay
// storage-agnostic. Implementations write through to the store when it is
// reachable and buffer otherwise.
type ActionBuffer interface {
	BufferAction(ctx context.Context, action *domain.Action) error
}
