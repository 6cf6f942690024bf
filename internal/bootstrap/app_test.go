package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", AllowedOrigins: []string{"http://localhost:3000"}},
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Auth: config.AuthConfig{
			SessionTTL:  time.Hour,
			AdminEmails: []string{"admin@clytar.io"},
		},
		Generation: config.GenerationConfig{
			Provider: config.ProviderTemplate,
			Timeout:  5 * time.Second,
		},
		App: config.AppConfig{Environment: "test", Version: "test"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	SetGinMode("test")
	app, err := NewApp(context.Background(), cfg, zap.NewNop(), AppOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func send(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func signUp(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	w, body := send(t, h, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": email, "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["session"].(map[string]any)["token"].(string)
}

func TestRouter_EndToEnd(t *testing.T) {
	h := newTestApp(t, testConfig()).Router()

	w, body := send(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", body["db"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	member := signUp(t, h, "writer@clytar.io")
	admin := signUp(t, h, "admin@clytar.io")

	w, _ = send(t, h, http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = send(t, h, http.MethodPost, "/api/v1/projects", member, gin.H{
		"title": "Q2 Launch", "objective": "announce feature", "audience": "SMB owners",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := body["project"].(map[string]any)["id"].(string)

	w, body = send(t, h, http.MethodPost, "/api/v1/projects/"+id+"/advance", member, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "insights_ready", body["project"].(map[string]any)["status"])

	w, _ = send(t, h, http.MethodGet, "/api/v1/admin/users", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = send(t, h, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["stats"].(map[string]any)["users"])

	w, _ = send(t, h, http.MethodPost, "/api/v1/admin/notifications", admin, gin.H{"recipient_id": "all", "message": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, body = send(t, h, http.MethodGet, "/api/v1/notifications", member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["notifications"], 1)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestApp(t, testConfig()).Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	cfg := corsConfig(nil)
	assert.True(t, cfg.AllowAllOrigins)
	assert.False(t, cfg.AllowCredentials)
}

func TestNewApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Storage.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	app := newTestApp(t, cfg)
	require.NotNil(t, app.Redis)
	h := app.Router()

	w, body := send(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "up", body["redis"])

	token := signUp(t, h, "writer@clytar.io")
	assert.NotEmpty(t, mr.Keys())

	w, _ = send(t, h, http.MethodGet, "/api/v1/auth/session", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(context.Background(), &config.GenerationConfig{
		Provider: config.ProviderTemplate, RatePerSecond: 5, Burst: 2,
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = NewGenerator(context.Background(), &config.GenerationConfig{
		Provider: config.ProviderTemplate, TemplatesPath: "/does/not/exist.yaml",
	})
	assert.Error(t, err)
}
