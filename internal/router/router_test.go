package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campus-gateway/internal/config"
	"campus-gateway/internal/handler"
	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
	"campus-gateway/internal/repository"
	"campus-gateway/internal/security"
	"campus-gateway/internal/service"
)

func testObservability(t *testing.T) Observability {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	require.NoError(t, err)
	return Observability{HTTP: metrics, Gatherer: reg}
}

func testConfig() *config.Config {
	return &config.Config{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}}
}

func TestGatewayRouter(t *testing.T) {
	tokens, err := service.NewTokenService("router-secret", time.Hour)
	require.NoError(t, err)

	dispatched := 0
	dispatcher := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		dispatched++
		w.WriteHeader(http.StatusAccepted)
	})

	h := NewGateway(testConfig(), testObservability(t), middleware.NewAuthMiddleware(tokens), dispatcher,
		handler.NewHealthHandler("api-gateway"), handler.NewAdminHandler())

	bearer := func(role model.Role) string {
		token, err := tokens.Issue("u-"+string(role), role, 0)
		require.NoError(t, err)
		return "Bearer " + token
	}

	serve := func(method, path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK","service":"api-gateway"}`, rec.Body.String())

	rec = serve(http.MethodGet, "/api/admin", bearer(model.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"message":"Admin endpoint accessed successfully","user":{"userId":"u-ADMIN","role":"ADMIN"}}`,
		rec.Body.String())

	rec = serve(http.MethodPost, "/api/admin/stats", bearer(model.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(http.MethodGet, "/api/admin", bearer(model.RoleFormateur))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(http.MethodGet, "/api/admin", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access token required")

	require.Zero(t, dispatched)

	rec = serve(http.MethodDelete, "/api/briefs/3", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = serve(http.MethodGet, "/anything/else", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, dispatched)

	rec = serve(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campus_http_requests_total")
}

func TestAuthServiceRouter(t *testing.T) {
	tokens, err := service.NewTokenService("router-secret", time.Hour)
	require.NoError(t, err)
	authService := service.NewAuthService(repository.NewMemoryUserRepository(), security.NewBcryptHasher(bcrypt.MinCost), tokens)
	t.Cleanup(authService.Wait)

	h := NewAuthService(testConfig(), testObservability(t), handler.NewAuthHandler(authService), handler.NewHealthHandler("auth-service"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK","service":"auth-service"}`, rec.Body.String())

	body := `{"email":"ada@example.com","password":"Secret123","firstName":"Ada","lastName":"Lovelace"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"Secret123"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Route not found"}`, rec.Body.String())
}
