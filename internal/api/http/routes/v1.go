package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/clytar/clytar-backend/internal/auth"
	authhttp "github.com/clytar/clytar-backend/internal/auth/http"
	authmw "github.com/clytar/clytar-backend/internal/auth/middleware"
	"github.com/clytar/clytar-backend/internal/auth/session"
	notifhttp "github.com/clytar/clytar-backend/internal/notifications/http"
	notifservice "github.com/clytar/clytar-backend/internal/notifications/service"
	projecthttp "github.com/clytar/clytar-backend/internal/projects/http"
	usershttp "github.com/clytar/clytar-backend/internal/users/http"
	usersservice "github.com/clytar/clytar-backend/internal/users/service"
	"github.com/clytar/clytar-backend/internal/workflow"
)

type V1Deps struct {
	Sessions      *session.Manager
	Cookies       *auth.CookieCodec
	Users         *usersservice.UserService
	Engine        *workflow.Engine
	Events        workflow.Subscriber
	Notifications *notifservice.Service
}

func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	requireSession := authmw.RequireSession(dep.Sessions, dep.Cookies)

	authhttp.New(dep.Sessions, dep.Users, dep.Cookies).Register(
		api.Group("/auth"),
		api.Group("/auth", requireSession),
	)

	signedIn := api.Group("", requireSession)
	projecthttp.New(dep.Engine, dep.Events).Register(signedIn.Group("/projects"))

	admin := api.Group("/admin", requireSession, authmw.RequireAdmin("admin"))
	usershttp.New(dep.Users).Register(admin)
	notifhttp.New(dep.Notifications).Register(signedIn, admin)
}
