package workflow

import (
	"context"
	"sync"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskCanceled  TaskStatus = "canceled"
)

// Task is a handle on one stage transition. Transitions that need no
// generation come back already finished.
type Task struct {
	ProjectID string
	From      domain.Status

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  TaskStatus
	project *domain.Project
	err     error
}

func newTask(projectID string, from domain.Status, cancel context.CancelFunc) *Task {
	if cancel == nil {
		cancel = func() {}
	}
	return &Task{
		ProjectID: projectID,
		From:      from,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    TaskRunning,
	}
}

func finishedTask(p *domain.Project, err error) *Task {
	t := newTask(p.ID, p.Status, nil)
	t.finish(TaskSucceeded, p, err)
	return t
}

func (t *Task) finish(status TaskStatus, p *domain.Project, err error) {
	t.mu.Lock()
	t.status = status
	t.project = p
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops generation. A task cancelled before it commits leaves the
// project untouched; cancelling a finished task does nothing.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Wait blocks until the task finishes or ctx is done. Giving up on the wait
// does not cancel the task.
func (t *Task) Wait(ctx context.Context) (*domain.Project, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.project.Clone(), t.err
}
