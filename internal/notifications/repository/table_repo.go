package repository

import (
	"context"
	"slices"
	"time"

	"github.com/clytar/clytar-backend/internal/notifications/domain"
	"github.com/clytar/clytar-backend/internal/store"
)

// TableRepository stores notifications and feedback through the table
// store.
type TableRepository struct {
	st  store.Store
	now func() time.Time
}

func NewTableRepository(st store.Store) *TableRepository {
	return &TableRepository{st: st, now: time.Now}
}

func (r *TableRepository) insert(ctx context.Context, table string, v any) (store.Record, error) {
	rec, err := store.Encode(v)
	if err != nil {
		return nil, err
	}
	return r.st.Insert(ctx, table, rec)
}

func (r *TableRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	n.CreatedAt = r.now().UTC()
	out, err := r.insert(ctx, store.TableNotifications, n)
	if err != nil {
		return err
	}
	n.ID = out.ID()
	return nil
}

func newestFirst() *store.Order {
	return &store.Order{Column: store.ColumnCreatedAt, Ascending: false}
}

func selectAll[T any](ctx context.Context, st store.Store, table string, filters ...store.Filter) ([]T, error) {
	rows, err := st.Select(ctx, table, store.Query{Filters: filters, Order: newestFirst()})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, rec := range rows {
		var v T
		if err := store.Decode(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *TableRepository) ListNotificationsFor(ctx context.Context, userID string) ([]domain.Notification, error) {
	direct, err := selectAll[domain.Notification](ctx, r.st, store.TableNotifications,
		store.Eq("recipient_id", userID))
	if err != nil {
		return nil, err
	}
	broadcast, err := selectAll[domain.Notification](ctx, r.st, store.TableNotifications,
		store.Eq("recipient_id", domain.RecipientAll))
	if err != nil {
		return nil, err
	}

	out := append(direct, broadcast...)
	slices.SortStableFunc(out, func(a, b domain.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *TableRepository) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	f.CreatedAt = r.now().UTC()
	out, err := r.insert(ctx, store.TableFeedback, f)
	if err != nil {
		return err
	}
	f.ID = out.ID()
	return nil
}

func (r *TableRepository) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	return selectAll[domain.Feedback](ctx, r.st, store.TableFeedback)
}
