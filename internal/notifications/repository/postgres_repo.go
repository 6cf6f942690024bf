package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/clytar/clytar-backend/internal/notifications/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	const q = `
INSERT INTO notifications (id, sender_id, recipient_id, message)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	return r.db.QueryRowContext(ctx, q, n.ID, n.SenderID, n.RecipientID, n.Message).Scan(&n.CreatedAt)
}

func (r *PostgresRepository) ListNotificationsFor(ctx context.Context, userID string) ([]domain.Notification, error) {
	const q = `
SELECT id, sender_id, recipient_id, message, created_at
FROM notifications
WHERE recipient_id = $1 OR recipient_id = $2
ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, domain.RecipientAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.SenderID, &n.RecipientID, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	const q = `
INSERT INTO feedback (id, user_id, email, message)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	return r.db.QueryRowContext(ctx, q, f.ID, f.UserID, f.Email, f.Message).Scan(&f.CreatedAt)
}

func (r *PostgresRepository) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	const q = `
SELECT id, user_id, email, message, created_at
FROM feedback
ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Email, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
