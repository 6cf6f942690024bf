package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/auth/session"
	"github.com/clytar/clytar-backend/internal/notifications/repository"
	"github.com/clytar/clytar-backend/internal/notifications/service"
	"github.com/clytar/clytar-backend/internal/store"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
	usersrepo "github.com/clytar/clytar-backend/internal/users/repository"
)

func setupRouter(t *testing.T) (*gin.Engine, *usersdomain.User, *usersdomain.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st := store.NewMemoryStore(store.DefaultSchema())
	users := usersrepo.NewTableRepository(st)
	admin := &usersdomain.User{Email: "admin@clytar.io", Role: usersdomain.RoleAdmin}
	member := &usersdomain.User{Email: "member@clytar.io", Role: usersdomain.RoleUser}
	require.NoError(t, users.Create(ctx, admin))
	require.NoError(t, users.Create(ctx, member))

	signedIn := func(c *gin.Context) {
		u, err := users.GetByID(c.Request.Context(), c.GetHeader("X-Test-User"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(auth.CtxSession, &session.Session{User: *u})
		c.Set(auth.CtxUserID, u.ID)
		c.Next()
	}

	r := gin.New()
	h := New(service.NewService(repository.NewTableRepository(st), users, nil))
	h.Register(r.Group("", signedIn), r.Group("/admin", signedIn))
	return r, admin, member
}

func do(t *testing.T, r http.Handler, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestNotificationRoutes(t *testing.T) {
	r, admin, member := setupRouter(t)

	code, body := do(t, r, http.MethodGet, "/notifications", member.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["notifications"])

	code, body = do(t, r, http.MethodPost, "/admin/notifications", admin.ID, gin.H{
		"recipient_id": "all", "message": "New templates are live",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["ok"])

	code, body = do(t, r, http.MethodPost, "/admin/notifications", member.ID, gin.H{
		"recipient_id": "all", "message": "spam",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, false, body["ok"])

	code, body = do(t, r, http.MethodPost, "/admin/notifications", admin.ID, gin.H{
		"recipient_id": member.ID, "message": "",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "broadcast", body["stage"])
	assert.Equal(t, "message", body["field"])

	code, body = do(t, r, http.MethodGet, "/notifications", member.ID, nil)
	require.Equal(t, http.StatusOK, code)
	list := body["notifications"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "New templates are live", list[0].(map[string]any)["message"])
}

func TestFeedbackRoutes(t *testing.T) {
	r, admin, member := setupRouter(t)

	code, body := do(t, r, http.MethodPost, "/feedback", member.ID, gin.H{"message": "More tones please"})
	require.Equal(t, http.StatusCreated, code)
	fb := body["feedback"].(map[string]any)
	assert.Equal(t, "member@clytar.io", fb["email"])

	code, _ = do(t, r, http.MethodGet, "/admin/feedback", member.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = do(t, r, http.MethodGet, "/admin/feedback", admin.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["feedback"], 1)

	req := httptest.NewRequest(http.MethodPost, "/feedback", bytes.NewBufferString("{"))
	req.Header.Set("X-Test-User", member.ID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
