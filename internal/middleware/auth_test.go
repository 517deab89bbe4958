package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-gateway/internal/model"
	"campus-gateway/internal/service"
	"campus-gateway/pkg/apierror"
)

type stubVerifier struct {
	identity model.Identity
	err      error
	calls    int
}

func (s *stubVerifier) Verify(string) (model.Identity, error) {
	s.calls++
	return s.identity, s.err
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticate(t *testing.T) {
	admin := model.Identity{Subject: "u1", Role: model.RoleAdmin}

	tests := []struct {
		name     string
		header   string
		verifier *stubVerifier
		kind     string
		status   int
		message  string
		calls    int
	}{
		{name: "missing header", header: "", verifier: &stubVerifier{}, kind: apierror.KindMissingToken, status: 401, message: "Access token required"},
		{name: "wrong scheme", header: "Basic abc", verifier: &stubVerifier{}, kind: apierror.KindMissingToken, status: 401, message: "Access token required"},
		{name: "lower-case scheme", header: "bearer abc", verifier: &stubVerifier{}, kind: apierror.KindMissingToken, status: 401, message: "Access token required"},
		{name: "empty token", header: "Bearer ", verifier: &stubVerifier{}, kind: apierror.KindMissingToken, status: 401, message: "Access token required"},
		{
			name:     "expired",
			header:   "Bearer t",
			verifier: &stubVerifier{err: &service.TokenError{Kind: service.TokenExpired}},
			kind:     apierror.KindTokenExpired, status: 401, message: "Token expired", calls: 1,
		},
		{
			name:     "bad signature",
			header:   "Bearer t",
			verifier: &stubVerifier{err: &service.TokenError{Kind: service.TokenBadSignature}},
			kind:     apierror.KindTokenInvalid, status: 401, message: "Invalid token", calls: 1,
		},
		{
			name:     "malformed",
			header:   "Bearer t",
			verifier: &stubVerifier{err: &service.TokenError{Kind: service.TokenMalformed}},
			kind:     apierror.KindTokenInvalid, status: 401, message: "Invalid token", calls: 1,
		},
		{
			name:     "unexpected verifier fault",
			header:   "Bearer t",
			verifier: &stubVerifier{err: errors.New("boom")},
			kind:     apierror.KindInternal, status: 500, message: "Authentication failed", calls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAuthMiddleware(tc.verifier).Authenticate(tc.header)

			var apiErr *apierror.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.kind, apiErr.Kind)
			assert.Equal(t, tc.status, apiErr.HTTPStatus)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, tc.calls, tc.verifier.calls)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		identity, err := NewAuthMiddleware(&stubVerifier{identity: admin}).Authenticate("Bearer good")
		require.NoError(t, err)
		assert.Equal(t, admin, identity)
	})
}

func TestAuthenticateWithRealTokens(t *testing.T) {
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	tokens, err := service.NewTokenService("secret", time.Hour, service.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	gate := NewAuthMiddleware(tokens)

	token, err := tokens.Issue("u1", model.RoleApprenant, 0)
	require.NoError(t, err)

	identity, err := gate.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleApprenant, identity.Role)

	now = issued.Add(2 * time.Hour)
	_, err = gate.Authenticate("Bearer " + token)
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindTokenExpired, apiErr.Kind)
}

func TestAuthorize(t *testing.T) {
	formateur := &model.Identity{Subject: "u2", Role: model.RoleFormateur}
	staff := model.NewRoleSet(model.RoleAdmin, model.RoleFormateur)

	t.Run("nil identity is refused even for an open set", func(t *testing.T) {
		decision := Authorize(nil, nil)
		assert.False(t, decision.Allowed)
		assert.Equal(t, model.ReasonNoIdentity, decision.Reason)

		apiErr := decision.Err()
		require.NotNil(t, apiErr)
		assert.Equal(t, 401, apiErr.HTTPStatus)
		assert.Equal(t, "User role not found", apiErr.Message)
	})

	t.Run("empty set admits any role", func(t *testing.T) {
		decision := Authorize(formateur, nil)
		assert.True(t, decision.Allowed)
		assert.Nil(t, decision.Err())
	})

	t.Run("member role is admitted", func(t *testing.T) {
		assert.True(t, Authorize(formateur, staff).Allowed)
	})

	t.Run("other roles are refused with required and current", func(t *testing.T) {
		decision := Authorize(&model.Identity{Subject: "u3", Role: model.RoleApprenant}, staff)
		assert.False(t, decision.Allowed)
		assert.Equal(t, model.ReasonRoleNotPermitted, decision.Reason)

		apiErr := decision.Err()
		require.NotNil(t, apiErr)
		assert.Equal(t, 403, apiErr.HTTPStatus)
		assert.Equal(t, "Insufficient permissions", apiErr.Message)
		assert.Equal(t, []string{"ADMIN", "FORMATEUR"}, apiErr.Extra["required"])
		assert.Equal(t, "APPRENANT", apiErr.Extra["current"])
	})
}

func TestRequireAuthAndRoles(t *testing.T) {
	verifier := &stubVerifier{identity: model.Identity{Subject: "u9", Role: model.RoleFormateur}}
	gate := NewAuthMiddleware(verifier)

	var seen http.Header
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "u9", identity.Subject)
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("admits and forwards a verified identity", func(t *testing.T) {
		h := gate.RequireAuth(RequireRoles(model.RoleAdmin, model.RoleFormateur)(final))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer ok")
		req.Header.Set(HeaderUserID, "spoofed")
		req.Header.Set(HeaderUserRole, "ADMIN")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u9", seen.Get(HeaderUserID))
		assert.Equal(t, "FORMATEUR", seen.Get(HeaderUserRole))
	})

	t.Run("refuses a role outside the set", func(t *testing.T) {
		h := gate.RequireAuth(RequireRoles(model.RoleAdmin)(final))

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer ok")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Insufficient permissions", body["message"])
		assert.Equal(t, []any{"ADMIN"}, body["required"])
		assert.Equal(t, "FORMATEUR", body["current"])
	})

	t.Run("RequireRoles without an identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRoles(model.RoleAdmin)(final).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "User role not found", decodeEnvelope(t, rec)["message"])
	})

	t.Run("missing token short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		gate.RequireAuth(final).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Access token required", decodeEnvelope(t, rec)["message"])
	})
}

func TestForwardIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	req.Header.Set(HeaderUserRole, "ADMIN")

	ForwardIdentity(req, nil)
	assert.Empty(t, req.Header.Get(HeaderUserID))
	assert.Empty(t, req.Header.Get(HeaderUserRole))

	ForwardIdentity(req, &model.Identity{Subject: "u1", Role: model.RoleApprenant})
	assert.Equal(t, "u1", req.Header.Get(HeaderUserID))
	assert.Equal(t, "APPRENANT", req.Header.Get(HeaderUserRole))
}
