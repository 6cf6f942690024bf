package generation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/projects/domain"
)

var q2Launch = Brief{
	Title:       "Q2 Launch",
	ContentType: "blog",
	Objective:   "announce feature",
	Audience:    "SMB owners",
}

func newTemplateGenerator(t *testing.T, delay time.Duration) *TemplateGenerator {
	t.Helper()
	lib, err := LoadLibrary("")
	require.NoError(t, err)
	return NewTemplateGenerator(lib, delay)
}

func TestTemplateGenerator_Insights(t *testing.T) {
	g := newTemplateGenerator(t, 0)

	ins, err := g.Insights(context.Background(), q2Launch)
	require.NoError(t, err)
	assert.False(t, ins.Empty())
	assert.Equal(t, "q2 launch", ins.TrendingKeywords[0])
	assert.Contains(t, ins.TrendingKeywords, "automation")

	other, err := g.Insights(context.Background(), Brief{Title: "x", ContentType: "podcast"})
	require.NoError(t, err)
	assert.Contains(t, other.TrendingKeywords, "content marketing")

	// results are copies of the library
	ins.TrendingKeywords[1] = "mutated"
	again, err := g.Insights(context.Background(), q2Launch)
	require.NoError(t, err)
	assert.Equal(t, "automation", again.TrendingKeywords[1])
}

func TestTemplateGenerator_DraftIsDeterministic(t *testing.T) {
	g := newTemplateGenerator(t, 0)
	ctx := context.Background()

	ins, err := g.Insights(ctx, q2Launch)
	require.NoError(t, err)

	d1, err := g.Draft(ctx, q2Launch, ins)
	require.NoError(t, err)
	d2, err := g.Draft(ctx, q2Launch, ins)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	first, _, _ := strings.Cut(d1.Text, "\n")
	assert.Equal(t, "# Q2 Launch", first)
	assert.Contains(t, d1.Text, "## 1. Why q2 launch matters now")
	assert.Contains(t, d1.Text, "SMB owners")
	assert.NotContains(t, d1.Text, "Voice and style")
	assert.NotEmpty(t, d1.RefinementNotes)
	assert.Contains(t, d1.OptimizationNotes, "'q2 launch'")
}

func TestTemplateGenerator_DraftWithBrandNotes(t *testing.T) {
	g := newTemplateGenerator(t, 0)
	b := q2Launch
	b.BrandNotes = "friendly, no jargon"

	d, err := g.Draft(context.Background(), b, nil)
	require.NoError(t, err)
	assert.Contains(t, d.Text, "_Voice and style: friendly, no jargon_")
	assert.Contains(t, d.Text, "Why content marketing matters now")
}

func TestHeading(t *testing.T) {
	assert.Equal(t, "# Untitled", Heading(Brief{}))
	assert.Equal(t, "# Two Lines", Heading(Brief{Title: "Two\nLines "}))
}

func TestTemplateGenerator_DelayHonorsCancellation(t *testing.T) {
	g := newTemplateGenerator(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Insights(ctx, q2Launch)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Draft(ctx, q2Launch, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadLibrary_FromPath(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("insights: {}\n"), 0o600))
	_, err := LoadLibrary(bad)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
insights:
  default:
    trending_keywords: ["custom"]
draft:
  intro: "Hello {{.Audience}}"
  sections:
    - heading: "Only"
      body: "{{.Keyword}}"
  closing: "Bye"
`), 0o600))
	lib, err := LoadLibrary(good)
	require.NoError(t, err)

	d, err := NewTemplateGenerator(lib, 0).Draft(context.Background(), q2Launch, &domain.Insights{TrendingKeywords: []string{"custom"}})
	require.NoError(t, err)
	assert.Equal(t, "# Q2 Launch\n\nHello SMB owners\n\n## 1. Only\n\ncustom\n\nBye\n", d.Text)

	_, err = LoadLibrary(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(StageDraft, nil))
	assert.ErrorIs(t, Classify(StageDraft, context.Canceled), context.Canceled)
	assert.ErrorIs(t, Classify(StageDraft, context.DeadlineExceeded), apperr.ErrGenerationTimeout)

	err := Classify(StageInsights, errors.New("boom"))
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)
	stage, _ := apperr.Fields(err)
	assert.Equal(t, StageInsights, stage)

	orig := &apperr.GenerationError{Kind: apperr.Timeout, Stage: StageDraft}
	assert.Same(t, orig, Classify(StageInsights, orig))
}

func TestLimited(t *testing.T) {
	g := newTemplateGenerator(t, 0)
	assert.Same(t, g, Limited(g, nil))

	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	limited := Limited(g, lim)
	ctx := context.Background()

	_, err := limited.Insights(ctx, q2Launch)
	require.NoError(t, err)

	// the next token is an hour away, past this deadline
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = limited.Draft(short, q2Launch, nil)
	assert.ErrorIs(t, err, apperr.ErrGenerationTimeout)
}

type fakeModel struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if cfg == nil || cfg.ResponseMIMEType != "application/json" {
		return nil, errors.New("expected JSON mode")
	}
	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(reply, genai.RoleModel),
		}},
	}, nil
}

func TestGeminiGenerator(t *testing.T) {
	model := &fakeModel{replies: []string{
		`{"trending_keywords":["launch"],"best_formats":["blog"]}`,
		`{"draft":"Body without heading","refinement_notes":" tightened ","optimization_notes":"ok"}`,
	}}
	g := &GeminiGenerator{models: model, model: "test"}
	ctx := context.Background()

	ins, err := g.Insights(ctx, q2Launch)
	require.NoError(t, err)
	assert.Equal(t, []string{"launch"}, ins.TrendingKeywords)
	assert.Contains(t, model.prompts[0], "Target audience: SMB owners")

	d, err := g.Draft(ctx, q2Launch, ins)
	require.NoError(t, err)
	assert.Equal(t, "# Q2 Launch\n\nBody without heading\n", d.Text)
	assert.Equal(t, "tightened", d.RefinementNotes)
	assert.Contains(t, model.prompts[1], `"trending_keywords":["launch"]`)
}

func TestGeminiGenerator_Failures(t *testing.T) {
	ctx := context.Background()

	g := &GeminiGenerator{models: &fakeModel{err: errors.New("503")}, model: "test"}
	_, err := g.Insights(ctx, q2Launch)
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)

	g = &GeminiGenerator{models: &fakeModel{replies: []string{`not json`}}, model: "test"}
	_, err = g.Draft(ctx, q2Launch, nil)
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)

	g = &GeminiGenerator{models: &fakeModel{replies: []string{`{}`}}, model: "test"}
	_, err = g.Insights(ctx, q2Launch)
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)

	g = &GeminiGenerator{models: &fakeModel{err: context.DeadlineExceeded}, model: "test"}
	_, err = g.Insights(ctx, q2Launch)
	assert.ErrorIs(t, err, apperr.ErrGenerationTimeout)
}
