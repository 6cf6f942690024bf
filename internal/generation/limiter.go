package generation

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
)

type limited struct {
	next Generator
	lim  *rate.Limiter
}

// Limited throttles calls to g. A wait that cannot finish before the
// context deadline counts as a generation timeout.
func Limited(g Generator, lim *rate.Limiter) Generator {
	if lim == nil {
		return g
	}
	return &limited{next: g, lim: lim}
}

func (l *limited) wait(ctx context.Context, stage string) error {
	if err := l.lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apperr.GenerationError{Kind: apperr.Timeout, Stage: stage, Err: err}
	}
	return nil
}

func (l *limited) Insights(ctx context.Context, b Brief) (*domain.Insights, error) {
	if err := l.wait(ctx, StageInsights); err != nil {
		return nil, err
	}
	return l.next.Insights(ctx, b)
}

func (l *limited) Draft(ctx context.Context, b Brief, ins *domain.Insights) (*Draft, error) {
	if err := l.wait(ctx, StageDraft); err != nil {
		return nil, err
	}
	return l.next.Draft(ctx, b, ins)
}
