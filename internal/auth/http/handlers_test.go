package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clytar/clytar-backend/internal/auth"
	authmw "github.com/clytar/clytar-backend/internal/auth/middleware"
	"github.com/clytar/clytar-backend/internal/auth/session"
	"github.com/clytar/clytar-backend/internal/store"
	"github.com/clytar/clytar-backend/internal/users/repository"
	usersservice "github.com/clytar/clytar-backend/internal/users/service"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repository.NewTableRepository(store.NewMemoryStore(store.DefaultSchema()))
	mgr := session.NewManager(users, session.NewMemoryBackend(), session.Options{
		TTL:         time.Hour,
		AdminEmails: []string{"owner@clytar.io"},
		BcryptCost:  bcrypt.MinCost,
	})
	cookies, err := auth.NewCookieCodec("0123456789abcdef0123456789abcdef", "", time.Hour, false)
	require.NoError(t, err)

	r := gin.New()
	h := New(mgr, usersservice.NewUserService(users, nil), cookies)
	h.Register(r.Group("/auth"), r.Group("/auth", authmw.RequireSession(mgr, cookies)))
	return r
}

type result struct {
	code    int
	body    map[string]any
	cookies []*http.Cookie
}

func call(t *testing.T, r http.Handler, method, path string, body any, prep func(*http.Request)) result {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if prep != nil {
		prep(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return result{code: w.Code, body: out, cookies: w.Result().Cookies()}
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func tokenOf(t *testing.T, res result) string {
	t.Helper()
	s, ok := res.body["session"].(map[string]any)
	require.True(t, ok, res.body)
	return s["token"].(string)
}

func TestSignUpAndSession(t *testing.T) {
	r := setupRouter(t)

	res := call(t, r, http.MethodPost, "/auth/signup", gin.H{
		"email": "Owner@Clytar.io", "password": "s3cret", "full_name": "Ada",
	}, nil)
	require.Equal(t, http.StatusCreated, res.code)
	token := tokenOf(t, res)
	user := res.body["session"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "owner@clytar.io", user["email"])
	assert.Equal(t, "admin", user["role"])
	assert.NotContains(t, user, "password_hash")

	require.Len(t, res.cookies, 1)
	cookie := res.cookies[0]
	assert.Equal(t, auth.CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)

	res = call(t, r, http.MethodGet, "/auth/session", nil, bearer(token))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, token, tokenOf(t, res))

	res = call(t, r, http.MethodGet, "/auth/session", nil, func(req *http.Request) { req.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, res.code)

	res = call(t, r, http.MethodPost, "/auth/signup", gin.H{"email": "owner@clytar.io", "password": "x"}, nil)
	assert.Equal(t, http.StatusConflict, res.code)

	res = call(t, r, http.MethodPost, "/auth/signup", gin.H{"email": "", "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "email", res.body["field"])
}

func TestSignInRefreshSignOut(t *testing.T) {
	r := setupRouter(t)

	res := call(t, r, http.MethodPost, "/auth/signup", gin.H{"email": "writer@clytar.io", "password": "pw"}, nil)
	require.Equal(t, http.StatusCreated, res.code)

	res = call(t, r, http.MethodPost, "/auth/signin", gin.H{"email": "writer@clytar.io", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, false, res.body["ok"])

	res = call(t, r, http.MethodPost, "/auth/signin", gin.H{"email": "WRITER@clytar.io", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, res.code)
	token := tokenOf(t, res)

	res = call(t, r, http.MethodPost, "/auth/refresh", nil, bearer(token))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, token, tokenOf(t, res))

	res = call(t, r, http.MethodPost, "/auth/signout", nil, bearer(token))
	require.Equal(t, http.StatusOK, res.code)
	require.Len(t, res.cookies, 1)
	assert.Negative(t, res.cookies[0].MaxAge)

	res = call(t, r, http.MethodGet, "/auth/session", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestProviderDisabled(t *testing.T) {
	r := setupRouter(t)
	res := call(t, r, http.MethodPost, "/auth/provider", gin.H{"id_token": "abc"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "provider", res.body["field"])
}

func TestProfile(t *testing.T) {
	r := setupRouter(t)

	res := call(t, r, http.MethodPost, "/auth/signup", gin.H{"email": "writer@clytar.io", "password": "pw"}, nil)
	require.Equal(t, http.StatusCreated, res.code)
	token := tokenOf(t, res)

	res = call(t, r, http.MethodPut, "/auth/profile", gin.H{
		"full_name": " Grace ", "company": "Clytar", "job_title": "Editor",
	}, bearer(token))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "Grace", res.body["user"].(map[string]any)["full_name"])

	res = call(t, r, http.MethodPut, "/auth/profile", gin.H{"full_name": ""}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "full_name", res.body["field"])

	res = call(t, r, http.MethodGet, "/auth/profile", nil, bearer(token))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "Editor", res.body["user"].(map[string]any)["job_title"])
}
