package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/api/handler"
	"github.com/qs3c/apply_go_server/internal/pkg/jwt"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/pkg/ws"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/service"
	"github.com/qs3c/apply_go_server/internal/supervisor"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "router-test-secret"

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret

	key, err := secret.GenerateKey()
	require.NoError(t, err)
	box, err := secret.NewBox(key)
	require.NoError(t, err)

	appRepo := repository.NewApplicationRepository(db)
	logRepo := repository.NewLogRepository(db)
	appService := service.NewApplicationService(appRepo, logRepo, nil, nil, cfg)
	manager := supervisor.NewManager(supervisor.Options{WorkerCount: 1}, nil, nil, nil, nil)

	router := NewRouter(
		handler.NewApplicationHandler(appService),
		handler.NewManagerHandler(manager, appService),
		handler.NewAnswerHandler(service.NewAnswerService(repository.NewAnswerRepository(db))),
		handler.NewProfileHandler(service.NewProfileService(repository.NewProfileRepository(db), box)),
		handler.NewWebSocketHandler(ws.NewHub(), testSecret, nil),
		cfg,
	)
	return router.Setup()
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func code(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := setupRouter(t)

	w := get(router, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, code(t, w))
}

func TestRouter_RequiresOperatorToken(t *testing.T) {
	router := setupRouter(t)
	token, err := jwt.GenerateToken("ops", testSecret, 1)
	require.NoError(t, err)

	paths := []string{
		"/api/v1/applications",
		"/api/v1/manager/status",
		"/api/v1/answers",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, response.CodeAuthFailed, code(t, get(router, path, "")))
			assert.Equal(t, response.CodeSuccess, code(t, get(router, path, token)))
		})
	}
}

func TestRouter_ManagerStatusWithoutStart(t *testing.T) {
	router := setupRouter(t)
	token, err := jwt.GenerateToken("ops", testSecret, 1)
	require.NoError(t, err)

	w := get(router, "/api/v1/manager/status", token)
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, supervisor.StatusUninitialized, data["manager_status"])
	assert.Equal(t, float64(1), data["worker_count"])
}

func TestRouter_WebSocketRejectsMissingToken(t *testing.T) {
	router := setupRouter(t)

	w := get(router, "/api/v1/ws", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
