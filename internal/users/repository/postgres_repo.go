package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/users/domain"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, full_name, company, job_title, role, plan, password_hash,
       created_at, updated_at, last_login_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u           domain.User
		role, plan  string
		lastLoginAt sql.NullTime
	)
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Company,
		&u.JobTitle,
		&role,
		&plan,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Plan = domain.Plan(plan)
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// Create inserts a new user and fills in its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	if u.Email == "" {
		return apperr.Missing("sign_up", "email")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Plan == "" {
		u.Plan = domain.PlanFree
	}

	const q = `
INSERT INTO users (id, email, full_name, company, job_title, role, plan, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at;
`
	err := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Email,
		u.FullName,
		u.Company,
		u.JobTitle,
		string(u.Role),
		string(u.Plan),
		u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &apperr.AuthError{Kind: apperr.DuplicateEmail, Email: u.Email}
	}
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: id}
	}
	return u, err
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: email}
	}
	return u, err
}

func (r *PostgresRepository) List(ctx context.Context) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error) {
	q := `
UPDATE users
SET full_name = $2, company = $3, job_title = $4, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id, p.FullName, p.Company, p.JobTitle))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: id}
	}
	return u, err
}

func (r *PostgresRepository) SetPlan(ctx context.Context, id string, plan domain.Plan) (*domain.User, error) {
	q := `
UPDATE users
SET plan = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id, string(plan)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: id}
	}
	return u, err
}

func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE users SET last_login_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, q, id, at.UTC())
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFoundError{Kind: apperr.UnknownUser, ID: id}
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	const q = `
SELECT count(*),
       count(*) FILTER (WHERE plan = 'premium'),
       count(*) FILTER (WHERE role = 'admin')
FROM users;
`
	var s domain.Stats
	err := r.db.QueryRowContext(ctx, q).Scan(&s.Users, &s.Premium, &s.Admins)
	return s, err
}
