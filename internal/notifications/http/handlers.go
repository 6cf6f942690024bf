package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/api/http/respond"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/notifications/service"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type broadcastReq struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

type feedbackReq struct {
	Message string `json:"message"`
}

// Register attaches the member routes to rg and the admin routes to admin.
// Both groups must run the session middleware.
func (h *Handler) Register(rg, admin *gin.RouterGroup) {
	rg.GET("/notifications", h.list)
	rg.POST("/feedback", h.submitFeedback)

	admin.POST("/notifications", h.broadcast)
	admin.GET("/feedback", h.listFeedback)
}

func actor(c *gin.Context) *usersdomain.User {
	s := auth.CurrentSession(c)
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.ListFor(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "notifications", items)
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	var email string
	if s := auth.CurrentSession(c); s != nil {
		email = s.User.Email
	}
	f, err := h.svc.SubmitFeedback(c.Request.Context(), auth.UserID(c), email, req.Message)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, "feedback", f)
}

func (h *Handler) broadcast(c *gin.Context) {
	var req broadcastReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	n, err := h.svc.Broadcast(c.Request.Context(), actor(c), req.RecipientID, req.Message)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusCreated, "notification", n)
}

func (h *Handler) listFeedback(c *gin.Context) {
	items, err := h.svc.ListFeedback(c.Request.Context(), actor(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "feedback", items)
}
