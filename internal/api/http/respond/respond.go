// Package respond writes the JSON envelopes shared by every handler.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/api/http/middleware"
	"github.com/clytar/clytar-backend/internal/apperr"
)

// Error maps err onto the taxonomy's status code and writes
// {"ok": false, "error", "stage", "field"}. Validation failures are the
// caller's to fix and are not logged as system errors.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	stage, field := apperr.Fields(err)
	log := middleware.Logger(c)

	body := gin.H{"ok": false, "error": err.Error()}
	switch {
	case status == http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
		body["error"] = "internal error"
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		log.Error("generation failed", zap.Error(err), zap.String("stage", stage))
	case apperr.IsValidation(err):
		log.Debug("validation failed", zap.String("stage", stage), zap.String("field", field))
	}

	if stage != "" {
		body["stage"] = stage
	}
	if field != "" {
		body["field"] = field
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest reports an undecodable body.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

// OK writes {"ok": true, key: value}.
func OK(c *gin.Context, status int, key string, value any) {
	c.JSON(status, gin.H{"ok": true, key: value})
}
