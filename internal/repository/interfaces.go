package repository

import (
	"context"

	"github.com/dom/healthguide/internal/domain"
	"github.com/google/uuid"
)

// UserRepository is the credential store. Lookups return domain.ErrNotFound
// for missing records and Create returns domain.ErrAlreadyExists for a taken email.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type Repositories struct {
	User UserRepository
}
