package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/api/http/respond"
	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/auth/session"
)

// SessionResolver is satisfied by *session.Manager.
type SessionResolver interface {
	Session(ctx context.Context, token string) (*session.Session, error)
}

// RequireSession resolves the Bearer token, falling back to the signed
// session cookie, and stores the session and user id in the Gin context.
func RequireSession(resolver SessionResolver, cookies *auth.CookieCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" && cookies != nil {
			token = cookies.Token(c)
		}
		if token == "" {
			respond.Error(c, &apperr.AuthError{Kind: apperr.SessionExpired, Stage: "session"})
			return
		}

		s, err := resolver.Session(c.Request.Context(), token)
		if err != nil {
			respond.Error(c, err)
			return
		}

		c.Set(auth.CtxSession, s)
		c.Set(auth.CtxUserID, s.User.ID)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsAdmin(auth.CurrentSession(c)) {
			respond.Error(c, &apperr.ForbiddenError{Capability: capability})
			return
		}
		c.Next()
	}
}
