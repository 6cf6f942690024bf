package http

import (
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/auth/session"
	usersservice "github.com/clytar/clytar-backend/internal/users/service"
)

// Handler serves sign-up, sign-in and the signed-in user's session and
// profile. cookies may be nil, in which case only Bearer tokens are issued.
type Handler struct {
	sessions *session.Manager
	users    *usersservice.UserService
	cookies  *auth.CookieCodec
}

func New(sessions *session.Manager, users *usersservice.UserService, cookies *auth.CookieCodec) *Handler {
	return &Handler{sessions: sessions, users: users, cookies: cookies}
}

type signUpReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Company  string `json:"company"`
	JobTitle string `json:"job_title"`
}

type signInReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type providerReq struct {
	IDToken string `json:"id_token"`
}

type profileReq struct {
	FullName string `json:"full_name"`
	Company  string `json:"company"`
	JobTitle string `json:"job_title"`
}
