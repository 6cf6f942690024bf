// Package workflow drives content projects through their stages:
// draft, processing, insights_ready, final_review, scheduled, published.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/generation"
	"github.com/clytar/clytar-backend/internal/logging"
	"github.com/clytar/clytar-backend/internal/projects/domain"
	"github.com/clytar/clytar-backend/internal/projects/repository"
)

const (
	StageCreate      = "create_project"
	StageBrief       = "submit_brief"
	StageAdvance     = "advance"
	StageVariation   = "request_variation"
	StageUpdateDraft = "update_draft"
	StageSchedule    = "schedule"
	StagePublish     = "publish"
	StageGet         = "get_project"
)

// generation errors are retried this many times before surfacing
const maxGenerationRetries = 1

type CreateInput struct {
	Title       string
	ContentType string
	Objective   string
	Audience    string
	BrandNotes  string
}

// BriefInput fills in the step-two form. Empty fields keep their stored
// value.
type BriefInput struct {
	Title       string
	ContentType string
	Objective   string
	Audience    string
	BrandNotes  string
}

type ScheduleInput struct {
	Platform            string
	Category            string
	Date                string // 2006-01-02
	Time                string // 15:04, or "now"
	AdditionalPlatforms []string
}

const (
	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"
)

type Options struct {
	GenerationTimeout time.Duration
	Publisher         Publisher
	Logger            *zap.Logger
}

// Engine owns stage transitions. Transitions on one project are serialized
// in-process by an in-flight registry and across processes by the
// repository's conditional Save.
type Engine struct {
	repo    repository.Repository
	gen     generation.Generator
	pub     Publisher
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]string // project id -> stage
	tasks    map[*Task]struct{}
	wg       sync.WaitGroup
}

func NewEngine(repo repository.Repository, gen generation.Generator, opts Options) *Engine {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 60 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		repo:     repo,
		gen:      gen,
		pub:      opts.Publisher,
		log:      opts.Logger,
		timeout:  opts.GenerationTimeout,
		now:      time.Now,
		inflight: make(map[string]string),
		tasks:    make(map[*Task]struct{}),
	}
}

// claim reserves id for one operation. The returned func releases it.
func (e *Engine) claim(id, stage string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return nil, &apperr.ConflictError{Stage: stage, ID: id}
	}
	e.inflight[id] = stage
	return func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
	}, nil
}

func (e *Engine) publish(ctx context.Context, kind EventKind, p *domain.Project, cause error) {
	ev := ProjectEvent{
		Kind:      kind,
		ProjectID: p.ID,
		OwnerID:   p.OwnerID,
		Status:    p.Status,
		Version:   p.Version,
		At:        e.now().UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := e.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logging.FromContext(ctx, e.log).Warn("publish project event failed",
			zap.String("project_id", p.ID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

// load fetches a project owned by ownerID. Projects of other owners are
// reported as unknown.
func (e *Engine) load(ctx context.Context, stage, ownerID, id string) (*domain.Project, error) {
	if !domain.IsPublicID(id) {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownProject, Stage: stage, ID: id}
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.WithStage(err, stage)
	}
	if p.OwnerID != ownerID {
		return nil, &apperr.NotFoundError{Kind: apperr.UnknownProject, Stage: stage, ID: id}
	}
	return p, nil
}

func (e *Engine) Get(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	return e.load(ctx, StageGet, ownerID, id)
}

func (e *Engine) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return e.repo.ListByOwner(ctx, ownerID)
}

// commit writes work over prev, conditional on prev's status and version.
func (e *Engine) commit(ctx context.Context, work, prev *domain.Project, kind EventKind) (*domain.Project, error) {
	if err := e.repo.Save(ctx, work, prev.Status, prev.Version); err != nil {
		return nil, err
	}
	e.publish(ctx, kind, work, nil)
	return work, nil
}

// CreateProject stores a new draft. When the brief is already complete the
// project moves straight on to processing.
func (e *Engine) CreateProject(ctx context.Context, ownerID string, in CreateInput) (*domain.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Missing(StageCreate, "title")
	}
	ct := domain.ContentBlog
	if in.ContentType != "" {
		ct = domain.ContentType(strings.ToLower(strings.TrimSpace(in.ContentType)))
		if !ct.Valid() {
			return nil, apperr.Invalid(StageCreate, "content_type", in.ContentType)
		}
	}

	p := &domain.Project{
		OwnerID:     ownerID,
		Title:       title,
		ContentType: ct,
		Objective:   strings.TrimSpace(in.Objective),
		Audience:    strings.TrimSpace(in.Audience),
		BrandNotes:  strings.TrimSpace(in.BrandNotes),
	}
	if err := e.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logging.FromContext(ctx, e.log).Info("project created",
		zap.String("project_id", p.ID), zap.String("owner_id", ownerID))
	e.publish(ctx, EventCreated, p, nil)

	if p.Objective == "" || p.Audience == "" {
		return p, nil
	}
	return e.SubmitBrief(ctx, ownerID, p.ID, BriefInput{})
}

// SubmitBrief completes step two and moves draft to processing.
func (e *Engine) SubmitBrief(ctx context.Context, ownerID, id string, in BriefInput) (*domain.Project, error) {
	release, err := e.claim(id, StageBrief)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.load(ctx, StageBrief, ownerID, id)
	if err != nil {
		return nil, err
	}
	return e.submitBrief(ctx, p, in, StageBrief)
}

func (e *Engine) submitBrief(ctx context.Context, p *domain.Project, in BriefInput, stage string) (*domain.Project, error) {
	if p.Status != domain.StatusDraft {
		return nil, apperr.Invalid(stage, "status", string(p.Status))
	}

	work := p.Clone()
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&work.Title, in.Title)
	set(&work.Objective, in.Objective)
	set(&work.Audience, in.Audience)
	set(&work.BrandNotes, in.BrandNotes)
	if in.ContentType != "" {
		work.ContentType = domain.ContentType(strings.ToLower(strings.TrimSpace(in.ContentType)))
		if !work.ContentType.Valid() {
			return nil, apperr.Invalid(stage, "content_type", in.ContentType)
		}
	}

	switch {
	case work.Title == "":
		return nil, apperr.Missing(stage, "title")
	case work.Objective == "":
		return nil, apperr.Missing(stage, "objective")
	case work.Audience == "":
		return nil, apperr.Missing(stage, "audience")
	}

	work.Status = domain.StatusProcessing
	return e.commit(ctx, work, p, EventAdvanced)
}

// Advance runs the next stage transition and waits for it. Cancelling ctx
// cancels the transition.
func (e *Engine) Advance(ctx context.Context, ownerID, id string) (*domain.Project, error) {
	task, err := e.AdvanceAsync(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Cancel()
		<-task.Done()
	}
	return task.Wait(context.Background())
}

// AdvanceAsync starts the next stage transition and returns its handle.
// Generation runs detached from ctx's cancellation; use Task.Cancel.
// Projects in final_review or later are returned unchanged.
func (e *Engine) AdvanceAsync(ctx context.Context, ownerID, id string) (*Task, error) {
	release, err := e.claim(id, StageAdvance)
	if err != nil {
		return nil, err
	}

	p, err := e.load(ctx, StageAdvance, ownerID, id)
	if err != nil {
		release()
		return nil, err
	}

	switch p.Status {
	case domain.StatusDraft:
		defer release()
		next, err := e.submitBrief(ctx, p, BriefInput{}, StageAdvance)
		if err != nil {
			return nil, err
		}
		return finishedTask(next, nil), nil
	case domain.StatusProcessing, domain.StatusInsightsReady:
	default:
		release()
		return finishedTask(p, nil), nil
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := newTask(p.ID, p.Status, cancel)

	e.mu.Lock()
	e.tasks[t] = struct{}{}
	e.mu.Unlock()
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer cancel()

		next, err := e.generate(taskCtx, p)
		status := TaskSucceeded
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			status = TaskCanceled
		default:
			status = TaskFailed
		}

		e.mu.Lock()
		delete(e.tasks, t)
		e.mu.Unlock()
		release()
		t.finish(status, next, err)
	}()

	return t, nil
}

// generate produces the next stage's content on a working copy and commits
// it. Nothing is written when generation fails or is cancelled.
func (e *Engine) generate(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	log := logging.FromContext(ctx, e.log).With(zap.String("project_id", p.ID))
	work := p.Clone()
	brief := generation.BriefOf(p)

	var (
		stage string
		err   error
	)
	switch p.Status {
	case domain.StatusProcessing:
		stage = generation.StageInsights
		err = e.attempt(ctx, log, stage, func(ctx context.Context) error {
			ins, err := e.gen.Insights(ctx, brief)
			if err != nil {
				return err
			}
			if ins.Empty() {
				return fmt.Errorf("no insights produced")
			}
			work.Insights = ins
			return nil
		})
	case domain.StatusInsightsReady:
		stage = generation.StageDraft
		err = e.attempt(ctx, log, stage, func(ctx context.Context) error {
			d, err := e.gen.Draft(ctx, brief, p.Insights.Clone())
			if err != nil {
				return err
			}
			if strings.TrimSpace(d.Text) == "" {
				return fmt.Errorf("empty draft produced")
			}
			work.DraftFinal = d.Text
			work.RefinementNotes = d.RefinementNotes
			work.OptimizationNotes = d.OptimizationNotes
			return nil
		})
	}

	if err == nil {
		// a cancel that lands before the commit still rolls back
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("generation cancelled", zap.String("stage", stage))
		} else {
			log.Error("generation failed", zap.String("stage", stage), zap.Error(err))
			e.publish(ctx, EventFailed, p, err)
		}
		return nil, err
	}

	work.Status, _ = p.Status.Next()
	next, err := e.commit(ctx, work, p, EventAdvanced)
	if err != nil {
		return nil, err
	}
	log.Info("project advanced", zap.String("from", string(p.Status)), zap.String("to", string(next.Status)))
	return next, nil
}

// attempt runs fn under the generation timeout, retrying a generation
// failure once. Cancellation of ctx is returned as is.
func (e *Engine) attempt(ctx context.Context, log *zap.Logger, stage string, fn func(context.Context) error) error {
	var err error
	for try := 0; try <= maxGenerationRetries; try++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err = fn(attemptCtx)
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}
		err = generation.Classify(stage, err)
		if !apperr.Retryable(err) {
			return err
		}
		if try < maxGenerationRetries {
			log.Warn("generation attempt failed, retrying", zap.String("stage", stage), zap.Int("attempt", try+1), zap.Error(err))
		}
	}
	return err
}

// RequestVariation rewrites the draft's first heading line in the chosen
// tone. The status stays final_review.
func (e *Engine) RequestVariation(ctx context.Context, ownerID, id, variation string) (*domain.Project, error) {
	v, err := ParseVariation(variation)
	if err != nil {
		return nil, err
	}
	return e.editDraft(ctx, ownerID, id, StageVariation, EventVariation, func(p *domain.Project) (string, error) {
		if strings.TrimSpace(p.DraftFinal) == "" {
			return "", &apperr.ValidationError{Kind: apperr.EmptyDraft, Stage: StageVariation, Field: "draft_final"}
		}
		return applyVariation(p.DraftFinal, v, p.Title)
	})
}

// UpdateDraft replaces the working draft. An empty text is accepted here
// and rejected by Schedule.
func (e *Engine) UpdateDraft(ctx context.Context, ownerID, id, text string) (*domain.Project, error) {
	return e.editDraft(ctx, ownerID, id, StageUpdateDraft, EventDraftUpdated, func(*domain.Project) (string, error) {
		return text, nil
	})
}

func (e *Engine) editDraft(ctx context.Context, ownerID, id, stage string, kind EventKind, edit func(*domain.Project) (string, error)) (*domain.Project, error) {
	release, err := e.claim(id, stage)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.load(ctx, stage, ownerID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusFinalReview {
		return nil, apperr.Invalid(stage, "status", string(p.Status))
	}

	text, err := edit(p)
	if err != nil {
		return nil, err
	}
	work := p.Clone()
	work.DraftFinal = text
	return e.commit(ctx, work, p, kind)
}

// Schedule confirms the publish dialog and moves final_review to scheduled.
func (e *Engine) Schedule(ctx context.Context, ownerID, id string, in ScheduleInput) (*domain.Project, error) {
	release, err := e.claim(id, StageSchedule)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.load(ctx, StageSchedule, ownerID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.DraftFinal) == "" {
		return nil, &apperr.ValidationError{Kind: apperr.EmptyDraft, Stage: StageSchedule, Field: "draft_final"}
	}
	if p.Status != domain.StatusFinalReview {
		return nil, apperr.Invalid(StageSchedule, "status", string(p.Status))
	}

	sched, err := e.buildSchedule(in)
	if err != nil {
		return nil, err
	}

	work := p.Clone()
	work.Schedule = sched
	work.Status = domain.StatusScheduled
	next, err := e.commit(ctx, work, p, EventScheduled)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, e.log).Info("project scheduled",
		zap.String("project_id", id), zap.String("platform", sched.Platform), zap.Time("scheduled_at", sched.ScheduledAt))
	return next, nil
}

func (e *Engine) buildSchedule(in ScheduleInput) (*domain.Schedule, error) {
	s := &domain.Schedule{
		Platform: strings.ToLower(strings.TrimSpace(in.Platform)),
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
	}
	if s.Platform == "" {
		s.Platform = domain.DefaultPlatform
	}
	if !slices.Contains(domain.Platforms, s.Platform) {
		return nil, apperr.Invalid(StageSchedule, "platform", in.Platform)
	}
	if s.Category == "" {
		s.Category = domain.DefaultCategory
	}
	if !slices.Contains(domain.Categories, s.Category) {
		return nil, apperr.Invalid(StageSchedule, "category", in.Category)
	}

	for _, extra := range in.AdditionalPlatforms {
		extra = strings.ToLower(strings.TrimSpace(extra))
		if extra == "" || extra == s.Platform || slices.Contains(s.AdditionalPlatforms, extra) {
			continue
		}
		if !slices.Contains(domain.AdditionalPlatforms, extra) {
			return nil, apperr.Invalid(StageSchedule, "additional_platforms", extra)
		}
		s.AdditionalPlatforms = append(s.AdditionalPlatforms, extra)
	}

	clock := strings.TrimSpace(in.Time)
	if strings.EqualFold(clock, "now") {
		s.ScheduledAt = e.now().UTC()
		s.PublishNow = true
		return s, nil
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		return nil, apperr.Missing(StageSchedule, "date")
	}
	if clock == "" {
		return nil, apperr.Missing(StageSchedule, "time")
	}
	at, err := time.ParseInLocation(scheduleDateLayout+" "+scheduleTimeLayout, date+" "+clock, time.UTC)
	if err != nil {
		return nil, apperr.Invalid(StageSchedule, "scheduled_at", date+" "+clock)
	}
	s.ScheduledAt = at
	return s, nil
}

// Publish moves a due scheduled project to published. Already published
// projects are returned unchanged.
func (e *Engine) Publish(ctx context.Context, id string) (*domain.Project, error) {
	release, err := e.claim(id, StagePublish)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.WithStage(err, StagePublish)
	}
	switch {
	case p.Status == domain.StatusPublished:
		return p, nil
	case p.Status != domain.StatusScheduled:
		return nil, apperr.Invalid(StagePublish, "status", string(p.Status))
	case p.Schedule == nil:
		return nil, apperr.Missing(StagePublish, "schedule")
	case p.Schedule.ScheduledAt.After(e.now()):
		return nil, apperr.Invalid(StagePublish, "scheduled_at", p.Schedule.ScheduledAt.Format(time.RFC3339))
	}

	work := p.Clone()
	work.Status = domain.StatusPublished
	next, err := e.commit(ctx, work, p, EventPublished)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, e.log).Info("project published", zap.String("project_id", id))
	return next, nil
}

// DuePublications lists scheduled projects whose time has come.
func (e *Engine) DuePublications(ctx context.Context) ([]domain.Project, error) {
	return e.repo.ListScheduledBefore(ctx, e.now())
}

// Shutdown cancels running generation tasks and waits for them to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for t := range e.tasks {
		t.Cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
