package http

import "github.com/gin-gonic/gin"

// Register attaches the sign-in routes to public and the session routes to
// protected, which must run the session middleware.
func (h *Handler) Register(public, protected *gin.RouterGroup) {
	public.POST("/signup", h.signUp)
	public.POST("/signin", h.signIn)
	public.POST("/provider", h.signInWithProvider)

	protected.GET("/session", h.current)
	protected.POST("/refresh", h.refresh)
	protected.POST("/signout", h.signOut)
	protected.GET("/profile", h.profile)
	protected.PUT("/profile", h.updateProfile)
}
