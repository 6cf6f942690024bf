package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
	"github.com/clytar/clytar-backend/internal/store"
)

// TableRepository stores projects through the table store.
type TableRepository struct {
	st    store.Store
	now   func() time.Time
	newID func() (string, error)
}

func NewTableRepository(st store.Store) *TableRepository {
	return &TableRepository{st: st, now: time.Now, newID: domain.NewPublicID}
}

func decodeProject(rec store.Record) (*domain.Project, error) {
	var p domain.Project
	if err := store.Decode(rec, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create assigns a public id, version 1 and timestamps, retrying the id on
// collision.
func (r *TableRepository) Create(ctx context.Context, p *domain.Project) error {
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Version = 1
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}

	for i := 0; i < maxIDAttempts; i++ {
		id, err := r.newID()
		if err != nil {
			return err
		}
		p.ID = id

		rec, err := store.Encode(p)
		if err != nil {
			return err
		}
		_, err = r.st.Insert(ctx, store.TableProjects, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to generate unique project id")
}

func (r *TableRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	rows, err := r.st.Select(ctx, store.TableProjects, store.Query{
		Filters: []store.Filter{store.Eq(store.ColumnID, id)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownProject, ID: id}
	}
	return decodeProject(rows[0])
}

func (r *TableRepository) list(ctx context.Context, q store.Query) ([]domain.Project, error) {
	rows, err := r.st.Select(ctx, store.TableProjects, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(rows))
	for _, rec := range rows {
		p, err := decodeProject(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// ListByOwner returns the owner's projects, newest first.
func (r *TableRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return r.list(ctx, store.Query{
		Filters: []store.Filter{store.Eq("owner_id", ownerID)},
		Order:   &store.Order{Column: store.ColumnCreatedAt},
	})
}

// ListScheduledBefore returns scheduled projects due at or before the
// given instant, oldest schedule first.
func (r *TableRepository) ListScheduledBefore(ctx context.Context, before time.Time) ([]domain.Project, error) {
	all, err := r.list(ctx, store.Query{
		Filters: []store.Filter{store.Eq("status", string(domain.StatusScheduled))},
		Order:   &store.Order{Column: store.ColumnCreatedAt, Ascending: true},
	})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Schedule != nil && !p.Schedule.ScheduledAt.After(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save checks the status, then swaps on version. Every committed write
// bumps the version, so an unchanged version means an unchanged status.
func (r *TableRepository) Save(ctx context.Context, p *domain.Project, expectStatus domain.Status, expectVersion int64) error {
	cur, err := r.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.Status != expectStatus || cur.Version != expectVersion {
		return &apperr.ConflictError{Stage: "save " + string(p.Status), ID: p.ID}
	}

	next := p.Clone()
	next.Version = expectVersion + 1
	next.UpdatedAt = r.now().UTC()

	patch, err := store.Encode(next)
	if err != nil {
		return err
	}
	delete(patch, "owner_id")

	if _, err := r.st.CompareAndSwap(ctx, store.TableProjects, p.ID, store.Eq("version", expectVersion), patch); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return &apperr.ConflictError{Stage: "save " + string(p.Status), ID: p.ID}
		}
		return err
	}
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}
