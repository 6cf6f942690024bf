package repository

import (
	"context"

	"github.com/clytar/clytar-backend/internal/notifications/domain"
)

// Repository persists notifications and feedback. Lists are newest first.
type Repository interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	// ListNotificationsFor returns notifications addressed to userID or to
	// everyone.
	ListNotificationsFor(ctx context.Context, userID string) ([]domain.Notification, error)
	CreateFeedback(ctx context.Context, f *domain.Feedback) error
	ListFeedback(ctx context.Context) ([]domain.Feedback, error)
}
