package repository

import (
	"context"

	"github.com/learnstack/backend/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	SetStatus(ctx context.Context, id, status string) error
}

type CohortRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Cohort, error)
}

type MappingRepository interface {
	Get(ctx context.Context, userID, cohortID string) (*domain.Mapping, error)
	SetStatus(ctx context.Context, userID, cohortID, status string) error
}
