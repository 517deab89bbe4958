//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-gateway/internal/app"
	"campus-gateway/internal/config"
	"campus-gateway/internal/repository"
)

const testSecret = "integration-secret"

type stack struct {
	gateway *httptest.Server
	auth    *httptest.Server
	briefs  *httptest.Server
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:           "0",
		RequestTimeout:       5 * time.Second,
		ShutdownTimeout:      time.Second,
		JWTSecret:            testSecret,
		JWTTTL:               time.Hour,
		UserStore:            config.UserStoreMemory,
		BcryptCost:           4,
		LastLoginWait:        time.Second,
		CORSOrigins:          []string{"*"},
		ProxyDialTimeout:     time.Second,
		ProxyResponseTimeout: 5 * time.Second,
	}
}

// newStack starts the credential service, a stub brief service and the gateway
// in front of both. The apprenant and formateur targets point at a closed port.
func newStack(t *testing.T) *stack {
	t.Helper()

	cfg := testConfig()

	authHandler, authService, err := app.AuthHandler(cfg, repository.NewMemoryUserRepository(), app.NewRegistry())
	require.NoError(t, err)
	authServer := httptest.NewServer(authHandler)
	t.Cleanup(func() {
		authServer.Close()
		authService.Wait()
	})

	briefServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":   r.URL.Path,
			"userId": r.Header.Get("X-User-ID"),
			"role":   r.Header.Get("X-User-Role"),
		})
	}))
	t.Cleanup(briefServer.Close)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	cfg.AuthServiceURL = authServer.URL
	cfg.BriefServiceURL = briefServer.URL
	cfg.ApprenantServiceURL = deadURL
	cfg.FormateurServiceURL = deadURL

	gatewayHandler, err := app.GatewayHandler(cfg, app.NewRegistry())
	require.NoError(t, err)
	gatewayServer := httptest.NewServer(gatewayHandler)
	t.Cleanup(gatewayServer.Close)

	return &stack{gateway: gatewayServer, auth: authServer, briefs: briefServer}
}

func doJSON(t *testing.T, method string, url string, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func register(t *testing.T, s *stack, email string, role string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, s.gateway.URL+"/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  "Secret123",
		"firstName": "Test",
		"lastName":  "User",
		"role":      role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["token"].(string)
}
