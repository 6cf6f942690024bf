// Package publisher runs the periodic sweep that publishes scheduled
// projects once their time has come.
package publisher

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
)

// Engine is the part of *workflow.Engine the sweep needs.
type Engine interface {
	DuePublications(ctx context.Context) ([]domain.Project, error)
	Publish(ctx context.Context, id string) (*domain.Project, error)
}

type Scheduler struct {
	engine Engine
	spec   string
	log    *zap.Logger
	cron   *cron.Cron
}

// NewScheduler takes a six-field cron spec (with seconds).
func NewScheduler(engine Engine, spec string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{engine: engine, spec: spec, log: log}
}

// Start registers the sweep and starts the cron runner. Overlapping runs
// are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(s.spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("publish sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron = c
	c.Start()
	s.log.Info("publish scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop stops the runner and waits for a running sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep publishes every due project and returns how many it moved.
// Projects that are busy or were published elsewhere are skipped.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	due, err := s.engine.DuePublications(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, p := range due {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		next, err := s.engine.Publish(ctx, p.ID)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			s.log.Debug("publish skipped, project busy", zap.String("project_id", p.ID))
		case err != nil:
			s.log.Warn("publish failed", zap.String("project_id", p.ID), zap.Error(err))
		case next.Status == domain.StatusPublished:
			published++
		}
	}
	if published > 0 {
		s.log.Info("publish sweep", zap.Int("published", published), zap.Int("due", len(due)))
	}
	return published, nil
}
