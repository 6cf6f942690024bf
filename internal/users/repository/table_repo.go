package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/store"
	"github.com/clytar/clytar-backend/internal/users/domain"
)

// tableUserEmails reserves each email under its own id so the uniqueness
// check and the reservation are one atomic insert.
const tableUserEmails = "user_emails"

type userRow struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Company      string     `json:"company"`
	JobTitle     string     `json:"job_title"`
	Role         string     `json:"role"`
	Plan         string     `json:"plan"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func toRow(u *domain.User) userRow {
	return userRow{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Company:      u.Company,
		JobTitle:     u.JobTitle,
		Role:         string(u.Role),
		Plan:         string(u.Plan),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func (r userRow) user() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		Company:      r.Company,
		JobTitle:     r.JobTitle,
		Role:         domain.Role(r.Role),
		Plan:         domain.Plan(r.Plan),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLoginAt:  r.LastLoginAt,
	}
}

// TableRepository stores users through the table store.
type TableRepository struct {
	st  store.Store
	now func() time.Time
}

func NewTableRepository(st store.Store) *TableRepository {
	return &TableRepository{st: st, now: time.Now}
}

func (r *TableRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email == "" {
		return apperr.Missing("sign_up", "email")
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Plan == "" {
		u.Plan = domain.PlanFree
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	reservation := store.Record{store.ColumnID: u.Email, "user_id": u.ID}
	if _, err := r.st.Insert(ctx, tableUserEmails, reservation); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return &apperr.AuthError{Kind: apperr.DuplicateEmail, Email: u.Email}
		}
		return err
	}

	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	rec, err := store.Encode(toRow(u))
	if err == nil {
		_, err = r.st.Insert(ctx, store.TableUsers, rec)
	}
	if err != nil {
		// release the email so the address can sign up again
		if derr := r.st.Delete(context.WithoutCancel(ctx), tableUserEmails, u.Email); derr != nil {
			return errors.Join(err, fmt.Errorf("release email reservation: %w", derr))
		}
		return err
	}
	return nil
}

func (r *TableRepository) one(ctx context.Context, key, filterCol, value string) (*domain.User, error) {
	rows, err := r.st.Select(ctx, store.TableUsers, store.Query{
		Filters: []store.Filter{store.Eq(filterCol, value)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: key}
	}
	var row userRow
	if err := store.Decode(rows[0], &row); err != nil {
		return nil, err
	}
	return row.user(), nil
}

func (r *TableRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.one(ctx, id, store.ColumnID, id)
}

func (r *TableRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.one(ctx, email, "email", email)
}

func (r *TableRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.st.Select(ctx, store.TableUsers, store.Query{
		Order: &store.Order{Column: store.ColumnCreatedAt, Ascending: true},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, rec := range rows {
		var row userRow
		if err := store.Decode(rec, &row); err != nil {
			return nil, err
		}
		out = append(out, *row.user())
	}
	return out, nil
}

func (r *TableRepository) patch(ctx context.Context, id string, patch store.Record) (*domain.User, error) {
	patch["updated_at"] = r.now().UTC()
	n, err := r.st.Update(ctx, store.TableUsers, []store.Filter{store.Eq(store.ColumnID, id)}, patch)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: id}
	}
	return r.GetByID(ctx, id)
}

func (r *TableRepository) UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error) {
	return r.patch(ctx, id, store.Record{
		"full_name": p.FullName,
		"company":   p.Company,
		"job_title": p.JobTitle,
	})
}

func (r *TableRepository) SetPlan(ctx context.Context, id string, plan domain.Plan) (*domain.User, error) {
	return r.patch(ctx, id, store.Record{"plan": string(plan)})
}

func (r *TableRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.patch(ctx, id, store.Record{"last_login_at": at.UTC()})
	return err
}

func (r *TableRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var (
		s   domain.Stats
		err error
	)
	if s.Users, err = r.st.Count(ctx, store.TableUsers, nil); err != nil {
		return s, err
	}
	if s.Premium, err = r.st.Count(ctx, store.TableUsers, []store.Filter{store.Eq("plan", string(domain.PlanPremium))}); err != nil {
		return s, err
	}
	if s.Admins, err = r.st.Count(ctx, store.TableUsers, []store.Filter{store.Eq("role", string(domain.RoleAdmin))}); err != nil {
		return s, err
	}
	return s, nil
}
