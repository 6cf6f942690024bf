package repository

import (
	"context"
	"time"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

const (
	// maxIDAttempts bounds public id regeneration on collision.
	maxIDAttempts   = 5
	uniqueViolation = "23505"
)

// Repository persists content projects. Save is a conditional write: it
// commits only when the stored row still has expectStatus and
// expectVersion, and fails with apperr.ConflictError otherwise.
type Repository interface {
	Create(ctx context.Context, p *domain.Project) error
	Get(ctx context.Context, id string) (*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error)
	ListScheduledBefore(ctx context.Context, before time.Time) ([]domain.Project, error)
	Save(ctx context.Context, p *domain.Project, expectStatus domain.Status, expectVersion int64) error
}
