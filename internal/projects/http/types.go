package http

import (
	"time"

	"github.com/clytar/clytar-backend/internal/workflow"
)

// Handler bundles the dependencies for project endpoints. events may be nil,
// which disables the event stream.
type Handler struct {
	engine    *workflow.Engine
	events    workflow.Subscriber
	keepAlive time.Duration
}

func New(engine *workflow.Engine, events workflow.Subscriber) *Handler {
	return &Handler{engine: engine, events: events, keepAlive: 15 * time.Second}
}

type createReq struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Objective   string `json:"objective"`
	Audience    string `json:"audience"`
	BrandNotes  string `json:"brand_notes"`
}

type briefReq struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Objective   string `json:"objective"`
	Audience    string `json:"audience"`
	BrandNotes  string `json:"brand_notes"`
}

type draftReq struct {
	Text *string `json:"text"`
}

type variationReq struct {
	Type string `json:"type"`
}

type scheduleReq struct {
	Platform            string   `json:"platform"`
	Category            string   `json:"category"`
	Date                string   `json:"date"`
	Time                string   `json:"time"`
	AdditionalPlatforms []string `json:"additional_platforms"`
}

type taskResp struct {
	ProjectID string              `json:"project_id"`
	From      string              `json:"from"`
	Status    workflow.TaskStatus `json:"status"`
}
