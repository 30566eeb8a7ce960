package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/taskpad/internal/api"
	"github.com/charlesng35/taskpad/internal/app"
	iauth "github.com/charlesng35/taskpad/internal/auth"
	testutil "github.com/charlesng35/taskpad/internal/database/testutil"
	"github.com/charlesng35/taskpad/internal/monitoring"
	"github.com/charlesng35/taskpad/internal/services"
	"github.com/charlesng35/taskpad/internal/store/gormstore"
)

type nopNotifier struct{}

func (nopNotifier) SendVerificationCode(_ context.Context, _, _ string) error { return nil }
func (nopNotifier) SendWelcome(_ context.Context, _, _ string) error { return nil }
func (nopNotifier) SendPasswordResetCode(_ context.Context, _, _ string) error { return nil }

func newDeps(t *testing.T) api.Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test"})
	require.NoError(t, err)

	hasher := iauth.NewPasswordHasher(bcrypt.MinCost)
	accounts, err := services.NewAccountService(backend.Accounts(), backend.Tasks(), hasher,
		iauth.NewOTPEngine(hasher, nil), jwtSvc, nopNotifier{})
	require.NoError(t, err)
	tasks, err := services.NewTaskService(backend.Tasks(), nil)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus = app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}

	return api.Dependencies{
		Config:   cfg,
		Store:    backend,
		Accounts: accounts,
		Tasks:    tasks,
		Static: fstest.MapFS{
			"index.html": {Data: []byte("<html>taskpad</html>")},
		},
	}
}

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router, err := api.NewRouter(newDeps(t))
	require.NoError(t, err)

	health := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, health.Code)
	require.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, health.Body.String())

	for _, target := range []string{"/api/auth/me", "/api/tasks", "/api/dashboard"} {
		rec := serve(router, http.MethodGet, target)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := serve(router, http.MethodDelete, "/api/auth/account")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Readiness(t *testing.T) {
	router, err := api.NewRouter(newDeps(t))
	require.NoError(t, err)

	rec := serve(router, http.MethodGet, "/api/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"component":"store"`)
	require.Contains(t, rec.Body.String(), `"status":"up"`)

	deps := newDeps(t)
	deps.Readiness = monitoring.NewReadiness(0, monitoring.NewCheck("store", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database is locked"}
	}))
	router, err = api.NewRouter(deps)
	require.NoError(t, err)

	rec = serve(router, http.MethodGet, "/api/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "database is locked")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, err := api.NewRouter(newDeps(t))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)

	metrics := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.True(t, strings.Contains(metrics.Body.String(), "taskpad_api_latency_seconds"))
}

func TestRouter_MetricsDisabled(t *testing.T) {
	deps := newDeps(t)
	deps.Config.Monitoring.Prometheus.Enabled = false
	router, err := api.NewRouter(deps)
	require.NoError(t, err)

	// Falls through to the SPA.
	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<html>taskpad</html>", rec.Body.String())
}

func TestRouter_UnknownRoutes(t *testing.T) {
	router, err := api.NewRouter(newDeps(t))
	require.NoError(t, err)

	apiMiss := serve(router, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, apiMiss.Code)
	require.Contains(t, apiMiss.Body.String(), "ROUTE_NOT_FOUND")

	spa := serve(router, http.MethodGet, "/tasks/42")
	require.Equal(t, http.StatusOK, spa.Code)
	require.Equal(t, "<html>taskpad</html>", spa.Body.String())
	require.NotEmpty(t, spa.Header().Get("X-Content-Type-Options"))
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.Error(t, err)

	deps := newDeps(t)
	deps.Accounts = nil
	_, err = api.NewRouter(deps)
	require.Error(t, err)
}
