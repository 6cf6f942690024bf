package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/generation"
	"github.com/clytar/clytar-backend/internal/projects/domain"
	"github.com/clytar/clytar-backend/internal/projects/repository"
	"github.com/clytar/clytar-backend/internal/store"
	"github.com/clytar/clytar-backend/internal/workflow"
)

func newEngine(t *testing.T) *workflow.Engine {
	t.Helper()
	lib, err := generation.LoadLibrary("")
	require.NoError(t, err)
	repo := repository.NewTableRepository(store.NewMemoryStore(store.DefaultSchema()))
	e := workflow.NewEngine(repo, generation.NewTemplateGenerator(lib, 0), workflow.Options{})
	t.Cleanup(func() { _ = e.Shutdown(context.Background()) })
	return e
}

func readyProject(t *testing.T, e *workflow.Engine, title string) *domain.Project {
	t.Helper()
	ctx := context.Background()
	p, err := e.CreateProject(ctx, "u1", workflow.CreateInput{
		Title: title, Objective: "announce feature", Audience: "SMB owners",
	})
	require.NoError(t, err)
	for p.Status != domain.StatusFinalReview {
		p, err = e.Advance(ctx, "u1", p.ID)
		require.NoError(t, err)
	}
	return p
}

func TestSweep_PublishesDueOnly(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	now := readyProject(t, e, "Launch post")
	_, err := e.Schedule(ctx, "u1", now.ID, workflow.ScheduleInput{Time: "now"})
	require.NoError(t, err)

	later := readyProject(t, e, "Follow-up post")
	_, err = e.Schedule(ctx, "u1", later.ID, workflow.ScheduleInput{Date: "2099-01-01", Time: "09:00"})
	require.NoError(t, err)

	s := NewScheduler(e, "* * * * * *", nil)
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.Get(ctx, "u1", now.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)

	got, err = e.Get(ctx, "u1", later.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status)

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type fakeEngine struct {
	due       []domain.Project
	errs      map[string]error
	published []string
}

func (f *fakeEngine) DuePublications(context.Context) ([]domain.Project, error) {
	return f.due, nil
}

func (f *fakeEngine) Publish(_ context.Context, id string) (*domain.Project, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	f.published = append(f.published, id)
	return &domain.Project{ID: id, Status: domain.StatusPublished}, nil
}

func TestSweep_SkipsFailures(t *testing.T) {
	f := &fakeEngine{
		due: []domain.Project{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		errs: map[string]error{
			"a": &apperr.ConflictError{Stage: "publish", ID: "a"},
			"b": errors.New("connection reset"),
		},
	}
	n, err := NewScheduler(f, "* * * * * *", nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"c"}, f.published)
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeEngine{}
	s := NewScheduler(f, "not a spec", nil)
	require.Error(t, s.Start(context.Background()))

	s = NewScheduler(f, "@every 10ms", nil)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
