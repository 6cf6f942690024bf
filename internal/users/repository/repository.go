package repository

import (
	"context"
	"time"

	"github.com/clytar/clytar-backend/internal/users/domain"
)

// Repository persists users. Lookups of unknown ids or emails fail with
// apperr.NotFoundError{UnknownUser}; Create fails with
// apperr.AuthError{DuplicateEmail} when the email is taken.
type Repository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error)
	SetPlan(ctx context.Context, id string, plan domain.Plan) (*domain.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (domain.Stats, error)
}
