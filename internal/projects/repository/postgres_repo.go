package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
)

// PostgresRepository provides persistence operations for projects.
type PostgresRepository struct {
	db    *sql.DB
	newID func() (string, error)
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, newID: domain.NewPublicID}
}

const projectColumns = `id, owner_id, title, content_type, objective, audience, brand_notes, status,
       insights, draft_final, refinement_notes, optimization_notes, schedule, version,
       created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*domain.Project, error) {
	var (
		p                     domain.Project
		contentType, status   string
		insightsRaw, schedRaw []byte
	)
	err := s.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Title,
		&contentType,
		&p.Objective,
		&p.Audience,
		&p.BrandNotes,
		&status,
		&insightsRaw,
		&p.DraftFinal,
		&p.RefinementNotes,
		&p.OptimizationNotes,
		&schedRaw,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ContentType = domain.ContentType(contentType)
	p.Status = domain.Status(status)

	if len(insightsRaw) > 0 {
		var ins domain.Insights
		if err := json.Unmarshal(insightsRaw, &ins); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
		p.Insights = &ins
	}
	if len(schedRaw) > 0 {
		var sc domain.Schedule
		if err := json.Unmarshal(schedRaw, &sc); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		p.Schedule = &sc
	}
	return &p, nil
}

// jsonArg encodes v for a JSONB column; nil pointers become SQL NULL.
func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scheduledAt(s *domain.Schedule) any {
	if s == nil {
		return nil
	}
	return s.ScheduledAt.UTC()
}

// Create inserts a new project, retrying the public id on unique violation.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Project) error {
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	insights, err := jsonArg(p.Insights)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO projects (id, owner_id, title, content_type, objective, audience, brand_notes, status, insights, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
RETURNING version, created_at, updated_at;
`
	for i := 0; i < maxIDAttempts; i++ {
		id, err := r.newID()
		if err != nil {
			return err
		}

		err = r.db.QueryRowContext(ctx, q,
			id, p.OwnerID, p.Title, string(p.ContentType), p.Objective, p.Audience, p.BrandNotes,
			string(p.Status), insights,
		).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
		if err == nil {
			p.ID = id
			return nil
		}

		// unique violation on id → retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to generate unique project id")
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownProject, ID: id}
	}
	return p, err
}

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOwner returns the owner's projects, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.query(ctx, q, ownerID)
}

func (r *PostgresRepository) ListScheduledBefore(ctx context.Context, before time.Time) ([]domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects
WHERE status = 'scheduled' AND scheduled_at <= $1
ORDER BY scheduled_at ASC`
	return r.query(ctx, q, before.UTC())
}

// Save writes the mutable columns when status and version still match.
func (r *PostgresRepository) Save(ctx context.Context, p *domain.Project, expectStatus domain.Status, expectVersion int64) error {
	insights, err := jsonArg(p.Insights)
	if err != nil {
		return err
	}
	schedule, err := jsonArg(p.Schedule)
	if err != nil {
		return err
	}

	const q = `
UPDATE projects
SET title = $4, content_type = $5, objective = $6, audience = $7, brand_notes = $8,
    status = $9, insights = $10, draft_final = $11, refinement_notes = $12,
    optimization_notes = $13, schedule = $14, scheduled_at = $15,
    version = version + 1, updated_at = now()
WHERE id = $1 AND status = $2 AND version = $3
RETURNING version, updated_at;
`
	err = r.db.QueryRowContext(ctx, q,
		p.ID, string(expectStatus), expectVersion,
		p.Title, string(p.ContentType), p.Objective, p.Audience, p.BrandNotes,
		string(p.Status), insights, p.DraftFinal, p.RefinementNotes,
		p.OptimizationNotes, schedule, scheduledAt(p.Schedule),
	).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, p.ID); getErr != nil {
			return getErr
		}
		return &apperr.ConflictError{Stage: "save " + string(p.Status), ID: p.ID}
	}
	return err
}
