package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/api/http/middleware"
	"github.com/clytar/clytar-backend/internal/api/http/respond"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/auth/session"
	"github.com/clytar/clytar-backend/internal/users/domain"
)

// issued sets the session cookie and writes the session. The token is in
// the body as well for CLI and mobile clients.
func (h *Handler) issued(c *gin.Context, status int, s *session.Session) {
	if h.cookies != nil {
		if err := h.cookies.Set(c, s.Token); err != nil {
			respond.Error(c, err)
			return
		}
	}
	respond.OK(c, status, "session", s)
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	s, err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Password, domain.Profile{
		FullName: req.FullName,
		Company:  req.Company,
		JobTitle: req.JobTitle,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issued(c, http.StatusCreated, s)
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	s, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issued(c, http.StatusOK, s)
}

func (h *Handler) signInWithProvider(c *gin.Context) {
	var req providerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	s, err := h.sessions.SignInWithProvider(c.Request.Context(), req.IDToken)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issued(c, http.StatusOK, s)
}

func (h *Handler) current(c *gin.Context) {
	respond.OK(c, http.StatusOK, "session", auth.CurrentSession(c))
}

func (h *Handler) refresh(c *gin.Context) {
	cur := auth.CurrentSession(c)
	s, err := h.sessions.Refresh(c.Request.Context(), cur.Token)
	if err != nil {
		respond.Error(c, err)
		return
	}
	h.issued(c, http.StatusOK, s)
}

func (h *Handler) signOut(c *gin.Context) {
	cur := auth.CurrentSession(c)
	if err := h.sessions.SignOut(c.Request.Context(), cur.Token); err != nil {
		respond.Error(c, err)
		return
	}
	if h.cookies != nil {
		h.cookies.Clear(c)
	}
	middleware.Logger(c).Debug("signed out", zap.String("user_id", cur.User.ID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) profile(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "user", u)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), auth.UserID(c), domain.Profile{
		FullName: req.FullName,
		Company:  req.Company,
		JobTitle: req.JobTitle,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, http.StatusOK, "user", u)
}
