// Package http serves the admin user table.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/api/http/respond"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/users/domain"
	"github.com/clytar/clytar-backend/internal/users/service"
)

type Handler struct {
	svc *service.UserService
}

func New(svc *service.UserService) *Handler {
	return &Handler{svc: svc}
}

type planReq struct {
	Plan string `json:"plan"`
}

// Register attaches the routes to an admin group. The service re-checks the
// actor's role, so the group's RequireAdmin is a first gate only.
func (h *Handler) Register(admin *gin.RouterGroup) {
	admin.GET("/users", h.list)
	admin.PUT("/users/:id/plan", h.setPlan)
	admin.GET("/stats", h.stats)
}

func actor(c *gin.Context) *domain.User {
	s := auth.CurrentSession(c)
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.ListUsers(c.Request.Context(), actor(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "users", items)
}

func (h *Handler) setPlan(c *gin.Context) {
	var req planReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	u, err := h.svc.SetPlan(c.Request.Context(), actor(c), c.Param("id"), domain.Plan(req.Plan))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "user", u)
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context(), actor(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "stats", st)
}
