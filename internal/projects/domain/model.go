package domain

import (
	"slices"
	"time"
)

// Status is a stage of the content workflow.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusProcessing    Status = "processing"
	StatusInsightsReady Status = "insights_ready"
	StatusFinalReview   Status = "final_review"
	StatusScheduled     Status = "scheduled"
	StatusPublished     Status = "published"
)

var statusOrder = []Status{
	StatusDraft,
	StatusProcessing,
	StatusInsightsReady,
	StatusFinalReview,
	StatusScheduled,
	StatusPublished,
}

// Rank orders statuses along the workflow; -1 for unknown values.
func (s Status) Rank() int {
	return slices.Index(statusOrder, s)
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

// Next returns the forward successor. Published has none.
func (s Status) Next() (Status, bool) {
	r := s.Rank()
	if r < 0 || r == len(statusOrder)-1 {
		return "", false
	}
	return statusOrder[r+1], true
}

type ContentType string

const (
	ContentBlog   ContentType = "blog"
	ContentSocial ContentType = "social"
	ContentEmail  ContentType = "email"
)

func (c ContentType) Valid() bool {
	return c == ContentBlog || c == ContentSocial || c == ContentEmail
}

type Insights struct {
	TrendingKeywords   []string `json:"trending_keywords"`
	BestFormats        []string `json:"best_formats"`
	AudienceInsights   []string `json:"audience_insights"`
	CompetitorInsights []string `json:"competitor_insights"`
	Opportunities      []string `json:"opportunities"`
}

func (i *Insights) Empty() bool {
	return i == nil || len(i.TrendingKeywords)+len(i.BestFormats)+len(i.AudienceInsights)+
		len(i.CompetitorInsights)+len(i.Opportunities) == 0
}

func (i *Insights) Clone() *Insights {
	if i == nil {
		return nil
	}
	return &Insights{
		TrendingKeywords:   slices.Clone(i.TrendingKeywords),
		BestFormats:        slices.Clone(i.BestFormats),
		AudienceInsights:   slices.Clone(i.AudienceInsights),
		CompetitorInsights: slices.Clone(i.CompetitorInsights),
		Opportunities:      slices.Clone(i.Opportunities),
	}
}

// Publishing targets offered by the schedule dialog.
var (
	Platforms           = []string{"website", "linkedin", "medium", "twitter"}
	AdditionalPlatforms = []string{"linkedin", "twitter", "facebook", "medium"}
	Categories          = []string{"product", "industry", "howto", "case-study"}
)

const (
	DefaultPlatform = "website"
	DefaultCategory = "industry"
)

type Schedule struct {
	Platform            string    `json:"platform"`
	Category            string    `json:"category"`
	ScheduledAt         time.Time `json:"scheduled_at"`
	PublishNow          bool      `json:"publish_now"`
	AdditionalPlatforms []string  `json:"additional_platforms,omitempty"`
}

// Project is one piece of marketing content tracked through the workflow.
// Version increases on every committed write.
type Project struct {
	ID                string      `json:"id"`
	OwnerID           string      `json:"owner_id"`
	Title             string      `json:"title"`
	ContentType       ContentType `json:"content_type"`
	Objective         string      `json:"objective"`
	Audience          string      `json:"audience"`
	BrandNotes        string      `json:"brand_notes"`
	Status            Status      `json:"status"`
	Insights          *Insights   `json:"insights,omitempty"`
	DraftFinal        string      `json:"draft_final"`
	RefinementNotes   string      `json:"refinement_notes"`
	OptimizationNotes string      `json:"optimization_notes"`
	Schedule          *Schedule   `json:"schedule,omitempty"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Clone returns a deep copy, used as the engine's working copy.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Insights = p.Insights.Clone()
	if p.Schedule != nil {
		s := *p.Schedule
		s.AdditionalPlatforms = slices.Clone(p.Schedule.AdditionalPlatforms)
		cp.Schedule = &s
	}
	return &cp
}
