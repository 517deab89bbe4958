package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"campus-gateway/internal/model"
	"campus-gateway/internal/service"
	"campus-gateway/pkg/apierror"
)

const (
	bearerPrefix = "Bearer "

	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type tokenVerifier interface {
	Verify(tokenString string) (model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate turns a raw Authorization header value into an identity. The
// returned error is always an *apierror.APIError.
func (m *AuthMiddleware) Authenticate(header string) (model.Identity, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return model.Identity{}, apierror.MissingToken()
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return model.Identity{}, apierror.MissingToken()
	}

	identity, err := m.verifier.Verify(token)
	if err == nil {
		return identity, nil
	}

	var tokenErr *service.TokenError
	if !errors.As(err, &tokenErr) {
		return model.Identity{}, apierror.Internal("Authentication failed", err)
	}
	if tokenErr.Kind == service.TokenExpired {
		return model.Identity{}, apierror.TokenExpired()
	}
	return model.Identity{}, apierror.TokenInvalid()
}

// Authorize checks identity against allowed. A nil identity is refused even
// when allowed is empty.
func Authorize(identity *model.Identity, allowed model.RoleSet) model.AuthorizationDecision {
	if identity == nil {
		return model.AuthorizationDecision{Reason: model.ReasonNoIdentity, Required: allowed}
	}

	decision := model.AuthorizationDecision{Required: allowed, Current: identity.Role}
	if allowed.Empty() || allowed.Contains(identity.Role) {
		decision.Allowed = true
		return decision
	}

	decision.Reason = model.ReasonRoleNotPermitted
	return decision
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			WriteError(w, err, "Authentication failed")
			return
		}

		ForwardIdentity(r, &identity)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := model.NewRoleSet(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *model.Identity
			if id, ok := IdentityFromContext(r.Context()); ok {
				identity = &id
			}

			if apiErr := Authorize(identity, allowed).Err(); apiErr != nil {
				WriteError(w, apiErr, "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

// ForwardIdentity drops any client-supplied identity headers and, when identity
// is non-nil, replaces them with the verified values.
func ForwardIdentity(r *http.Request, identity *model.Identity) {
	r.Header.Del(HeaderUserID)
	r.Header.Del(HeaderUserRole)

	if identity == nil {
		return
	}
	r.Header.Set(HeaderUserID, identity.Subject)
	r.Header.Set(HeaderUserRole, string(identity.Role))
}
