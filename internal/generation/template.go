package generation

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clytar/clytar-backend/internal/projects/domain"
)

//go:embed templates.yaml
var defaultLibrary []byte

type insightSet struct {
	TrendingKeywords   []string `yaml:"trending_keywords"`
	BestFormats        []string `yaml:"best_formats"`
	AudienceInsights   []string `yaml:"audience_insights"`
	CompetitorInsights []string `yaml:"competitor_insights"`
	Opportunities      []string `yaml:"opportunities"`
}

type section struct {
	Heading string `yaml:"heading"`
	Body    string `yaml:"body"`
}

// Library is the content the template generator draws from.
type Library struct {
	Insights map[string]insightSet `yaml:"insights"`
	Draft    struct {
		Intro       string    `yaml:"intro"`
		Sections    []section `yaml:"sections"`
		Closing     string    `yaml:"closing"`
		BrandPrefix string    `yaml:"brand_prefix"`
	} `yaml:"draft"`
	RefinementNotes   string `yaml:"refinement_notes"`
	OptimizationNotes string `yaml:"optimization_notes"`
}

// LoadLibrary reads a library from path, or the embedded default when path
// is empty.
func LoadLibrary(path string) (*Library, error) {
	data := defaultLibrary
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read templates: %w", err)
		}
		data = b
	}
	return ParseLibrary(data)
}

func ParseLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if _, ok := lib.Insights["default"]; !ok {
		return nil, fmt.Errorf("parse templates: insights.default is required")
	}
	if len(lib.Draft.Sections) == 0 {
		return nil, fmt.Errorf("parse templates: draft.sections is empty")
	}
	return &lib, nil
}

// TemplateGenerator produces deterministic content from a Library. The
// optional delay stands in for a slow upstream and honors cancellation.
type TemplateGenerator struct {
	lib   *Library
	delay time.Duration
}

func NewTemplateGenerator(lib *Library, delay time.Duration) *TemplateGenerator {
	return &TemplateGenerator{lib: lib, delay: delay}
}

func (g *TemplateGenerator) wait(ctx context.Context) error {
	if g.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func titleKeyword(b Brief) string {
	return strings.ToLower(strings.Join(strings.Fields(b.Title), " "))
}

func (g *TemplateGenerator) Insights(ctx context.Context, b Brief) (*domain.Insights, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	set, ok := g.lib.Insights[b.ContentType]
	if !ok {
		set = g.lib.Insights["default"]
	}
	ins := &domain.Insights{
		TrendingKeywords:   slices.Clone(set.TrendingKeywords),
		BestFormats:        slices.Clone(set.BestFormats),
		AudienceInsights:   slices.Clone(set.AudienceInsights),
		CompetitorInsights: slices.Clone(set.CompetitorInsights),
		Opportunities:      slices.Clone(set.Opportunities),
	}
	if kw := titleKeyword(b); kw != "" && !slices.Contains(ins.TrendingKeywords, kw) {
		ins.TrendingKeywords = append([]string{kw}, ins.TrendingKeywords...)
	}
	return ins, nil
}

type draftData struct {
	Brief
	Keyword string
}

func render(name, text string, data draftData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Heading returns the "# " heading line a draft for b starts with.
func Heading(b Brief) string {
	title := strings.Join(strings.Fields(b.Title), " ")
	if title == "" {
		title = "Untitled"
	}
	return "# " + title
}

func (g *TemplateGenerator) Draft(ctx context.Context, b Brief, ins *domain.Insights) (*Draft, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	data := draftData{Brief: b, Keyword: "content marketing"}
	if ins != nil && len(ins.TrendingKeywords) > 0 {
		data.Keyword = ins.TrendingKeywords[0]
	}

	var sb strings.Builder
	sb.WriteString(Heading(b))
	sb.WriteString("\n\n")

	if strings.TrimSpace(b.BrandNotes) != "" && g.lib.Draft.BrandPrefix != "" {
		line, err := render("brand_prefix", g.lib.Draft.BrandPrefix, data)
		if err != nil {
			return nil, err
		}
		sb.WriteString("_" + line + "_\n\n")
	}

	intro, err := render("intro", g.lib.Draft.Intro, data)
	if err != nil {
		return nil, err
	}
	sb.WriteString(intro)
	sb.WriteString("\n\n")

	for i, s := range g.lib.Draft.Sections {
		heading, err := render("section heading", s.Heading, data)
		if err != nil {
			return nil, err
		}
		body, err := render("section body", s.Body, data)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "## %d. %s\n\n%s\n\n", i+1, heading, body)
	}

	closing, err := render("closing", g.lib.Draft.Closing, data)
	if err != nil {
		return nil, err
	}
	sb.WriteString(closing)
	sb.WriteString("\n")

	refinement, err := render("refinement_notes", g.lib.RefinementNotes, data)
	if err != nil {
		return nil, err
	}
	optimization, err := render("optimization_notes", g.lib.OptimizationNotes, data)
	if err != nil {
		return nil, err
	}

	return &Draft{
		Text:              sb.String(),
		RefinementNotes:   refinement,
		OptimizationNotes: optimization,
	}, nil
}
