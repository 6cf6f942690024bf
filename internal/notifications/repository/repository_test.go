package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/notifications/domain"
	"github.com/clytar/clytar-backend/internal/store"
)

var (
	_ Repository = (*TableRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)

func TestTableRepository_Notifications(t *testing.T) {
	ctx := context.Background()
	repo := NewTableRepository(store.NewMemoryStore(store.DefaultSchema()))

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	send := func(recipient, msg string) *domain.Notification {
		n := &domain.Notification{SenderID: "admin", RecipientID: recipient, Message: msg}
		require.NoError(t, repo.CreateNotification(ctx, n))
		return n
	}
	first := send(domain.RecipientAll, "maintenance tonight")
	send("u2", "for someone else")
	third := send("u1", "your plan changed")

	assert.NotEmpty(t, first.ID)

	got, err := repo.ListNotificationsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, third.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
	assert.True(t, got[1].CreatedAt.Equal(first.CreatedAt))

	err = repo.CreateNotification(ctx, &domain.Notification{RecipientID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrMissingField)
}

func TestTableRepository_Feedback(t *testing.T) {
	ctx := context.Background()
	repo := NewTableRepository(store.NewMemoryStore(store.DefaultSchema()))

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, repo.CreateFeedback(ctx, &domain.Feedback{UserID: "u1", Email: "a@clytar.io", Message: "love it"}))
	require.NoError(t, repo.CreateFeedback(ctx, &domain.Feedback{UserID: "u2", Email: "b@clytar.io", Message: "export to PDF?"}))

	list, err := repo.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "export to PDF?", list[0].Message)
	assert.Equal(t, "b@clytar.io", list[0].Email)
}

func TestPostgresRepository_Notifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(sqlmock.AnyArg(), "admin", "all", "hello").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	n := &domain.Notification{SenderID: "admin", RecipientID: "all", Message: "hello"}
	require.NoError(t, repo.CreateNotification(ctx, n))
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, now, n.CreatedAt)

	mock.ExpectQuery(`SELECT .* FROM notifications\s+WHERE recipient_id = \$1 OR recipient_id = \$2`).
		WithArgs("u1", "all").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "message", "created_at"}).
			AddRow("n2", "admin", "u1", "direct", now).
			AddRow("n1", "admin", "all", "hello", now.Add(-time.Hour)))

	list, err := repo.ListNotificationsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Feedback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO feedback`).
		WithArgs(sqlmock.AnyArg(), "u1", "a@clytar.io", "love it").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	require.NoError(t, repo.CreateFeedback(ctx, &domain.Feedback{UserID: "u1", Email: "a@clytar.io", Message: "love it"}))

	mock.ExpectQuery(`SELECT .* FROM feedback`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "email", "message", "created_at"}).
			AddRow("f1", "u1", "a@clytar.io", "love it", now))
	list, err := repo.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "f1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
