package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/api/http/respond"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/workflow"
)

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.engine.CreateProject(c.Request.Context(), auth.UserID(c), workflow.CreateInput{
		Title:       req.Title,
		ContentType: req.ContentType,
		Objective:   req.Objective,
		Audience:    req.Audience,
		BrandNotes:  req.BrandNotes,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, "project", p)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.engine.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "projects", items)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.engine.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "project", p)
}

func (h *Handler) submitBrief(c *gin.Context) {
	var req briefReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.engine.SubmitBrief(c.Request.Context(), auth.UserID(c), c.Param("id"), workflow.BriefInput{
		Title:       req.Title,
		ContentType: req.ContentType,
		Objective:   req.Objective,
		Audience:    req.Audience,
		BrandNotes:  req.BrandNotes,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "project", p)
}

// advance waits for the transition unless ?async=true, in which case it
// answers 202 and progress is reported on the event stream.
func (h *Handler) advance(c *gin.Context) {
	async, _ := strconv.ParseBool(c.Query("async"))
	ctx := c.Request.Context()
	userID := auth.UserID(c)

	if !async {
		p, err := h.engine.Advance(ctx, userID, c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, http.StatusOK, "project", p)
		return
	}

	task, err := h.engine.AdvanceAsync(ctx, userID, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusAccepted, "task", taskResp{
		ProjectID: task.ProjectID,
		From:      string(task.From),
		Status:    task.Status(),
	})
}

func (h *Handler) updateDraft(c *gin.Context) {
	var req draftReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.engine.UpdateDraft(c.Request.Context(), auth.UserID(c), c.Param("id"), *req.Text)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "project", p)
}

func (h *Handler) requestVariation(c *gin.Context) {
	var req variationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.engine.RequestVariation(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Type)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "project", p)
}

func (h *Handler) schedule(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.engine.Schedule(c.Request.Context(), auth.UserID(c), c.Param("id"), workflow.ScheduleInput{
		Platform:            req.Platform,
		Category:            req.Category,
		Date:                req.Date,
		Time:                req.Time,
		AdditionalPlatforms: req.AdditionalPlatforms,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "project", p)
}
