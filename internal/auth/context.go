package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/auth/session"
)

const (
	CtxSession = "session"
	CtxUserID  = "user_id"
)

// CurrentSession returns the session set by the session middleware.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(CtxSession)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// UserID extracts the signed-in user id from the Gin context.
func UserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserID))
}

// BearerToken extracts the Bearer token from the Authorization header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
