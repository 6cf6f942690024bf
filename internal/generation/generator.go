// Package generation produces insights and drafts for content projects.
package generation

import (
	"context"
	"errors"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
)

const (
	StageInsights = "generate_insights"
	StageDraft    = "generate_draft"
)

// Brief is the input collected by the creation form.
type Brief struct {
	Title       string
	ContentType string
	Objective   string
	Audience    string
	BrandNotes  string
}

func BriefOf(p *domain.Project) Brief {
	return Brief{
		Title:       p.Title,
		ContentType: string(p.ContentType),
		Objective:   p.Objective,
		Audience:    p.Audience,
		BrandNotes:  p.BrandNotes,
	}
}

// Draft is generated copy. Text starts with a "# " heading line.
type Draft struct {
	Text              string
	RefinementNotes   string
	OptimizationNotes string
}

type Generator interface {
	Insights(ctx context.Context, b Brief) (*domain.Insights, error)
	Draft(ctx context.Context, b Brief, ins *domain.Insights) (*Draft, error)
}

// Classify maps a generator failure onto the error taxonomy. Cancellation
// is passed through untouched so callers can tell it apart from failure.
func Classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var gen *apperr.GenerationError
	switch {
	case errors.As(err, &gen):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &apperr.GenerationError{Kind: apperr.Timeout, Stage: stage, Err: err}
	}
	return &apperr.GenerationError{Kind: apperr.UpstreamFailure, Stage: stage, Err: err}
}
