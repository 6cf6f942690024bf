package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

// contentModel is the slice of *genai.Models the generator calls.
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator asks a Gemini model for insights and drafts in JSON mode.
type GeminiGenerator struct {
	models contentModel
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{models: client.Models, model: model}, nil
}

func (g *GeminiGenerator) ask(ctx context.Context, prompt string, out any) error {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fmt.Errorf("empty response from %s", g.model)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func briefLines(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	fmt.Fprintf(&sb, "Content type: %s\n", b.ContentType)
	fmt.Fprintf(&sb, "Objective: %s\n", b.Objective)
	fmt.Fprintf(&sb, "Target audience: %s\n", b.Audience)
	if b.BrandNotes != "" {
		fmt.Fprintf(&sb, "Brand notes: %s\n", b.BrandNotes)
	}
	return sb.String()
}

const insightsPrompt = `You are a content strategist. Analyse current trends for the content brief below.
Reply with a JSON object with the string array fields trending_keywords, best_formats,
audience_insights, competitor_insights and opportunities. Give three to five entries per field.

`

func (g *GeminiGenerator) Insights(ctx context.Context, b Brief) (*domain.Insights, error) {
	var ins domain.Insights
	if err := g.ask(ctx, insightsPrompt+briefLines(b), &ins); err != nil {
		return nil, Classify(StageInsights, err)
	}
	if ins.Empty() {
		return nil, Classify(StageInsights, fmt.Errorf("model returned no insights"))
	}
	return &ins, nil
}

const draftPrompt = `You are a senior copywriter. Write the content described by the brief below in markdown.
Use these insights: %s

Reply with a JSON object with the string fields draft (the markdown text, starting with a
single "# " heading line), refinement_notes and optimization_notes.

`

type draftReply struct {
	Draft             string `json:"draft"`
	RefinementNotes   string `json:"refinement_notes"`
	OptimizationNotes string `json:"optimization_notes"`
}

func (g *GeminiGenerator) Draft(ctx context.Context, b Brief, ins *domain.Insights) (*Draft, error) {
	insJSON, err := json.Marshal(ins)
	if err != nil {
		return nil, err
	}

	var reply draftReply
	if err := g.ask(ctx, fmt.Sprintf(draftPrompt, insJSON)+briefLines(b), &reply); err != nil {
		return nil, Classify(StageDraft, err)
	}
	text := strings.TrimSpace(reply.Draft)
	if text == "" {
		return nil, Classify(StageDraft, fmt.Errorf("model returned an empty draft"))
	}
	if !strings.HasPrefix(text, "# ") {
		text = Heading(b) + "\n\n" + text
	}

	return &Draft{
		Text:              text + "\n",
		RefinementNotes:   strings.TrimSpace(reply.RefinementNotes),
		OptimizationNotes: strings.TrimSpace(reply.OptimizationNotes),
	}, nil
}
