package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group. The group
// must run the session middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("/:id/brief", h.submitBrief)
	rg.POST("/:id/advance", h.advance)
	rg.PUT("/:id/draft", h.updateDraft)
	rg.POST("/:id/variations", h.requestVariation)
	rg.POST("/:id/schedule", h.schedule)
	rg.GET("/:id/events", h.streamEvents)
}
