package apierror

import (
	"fmt"
	"net/http"
)

// Failure kinds surfaced to callers. The message attached to each kind is part
// of the public contract and must not change.
const (
	KindMissingToken       = "MISSING_TOKEN"
	KindTokenInvalid       = "TOKEN_INVALID"
	KindTokenExpired       = "TOKEN_EXPIRED"
	KindNoIdentity         = "NO_IDENTITY"
	KindRoleNotPermitted   = "ROLE_NOT_PERMITTED"
	KindRouteNotFound      = "ROUTE_NOT_FOUND"
	KindServiceUnavailable = "SERVICE_UNAVAILABLE"
	KindInvalidCredentials = "INVALID_CREDENTIALS"
	KindAccountDeactivated = "ACCOUNT_DEACTIVATED"
	KindDuplicateEmail     = "DUPLICATE_EMAIL"
	KindValidation         = "VALIDATION_FAILED"
	KindInternal           = "INTERNAL_ERROR"
)

type APIError struct {
	Kind       string
	Message    string
	HTTPStatus int
	// Extra fields are merged into the response envelope next to success and message.
	Extra map[string]any
	Err   error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// With returns a copy of e carrying an additional envelope field.
func (e *APIError) With(key string, value any) *APIError {
	out := *e
	out.Extra = make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		out.Extra[k] = v
	}
	out.Extra[key] = value
	return &out
}

// Wrap returns a copy of e recording cause. The cause is logged, never rendered.
func (e *APIError) Wrap(cause error) *APIError {
	out := *e
	out.Err = cause
	return &out
}

func New(kind string, message string, status int) *APIError {
	return &APIError{Kind: kind, Message: message, HTTPStatus: status}
}

func MissingToken() *APIError {
	return New(KindMissingToken, "Access token required", http.StatusUnauthorized)
}

func TokenInvalid() *APIError {
	return New(KindTokenInvalid, "Invalid token", http.StatusUnauthorized)
}

func TokenExpired() *APIError {
	return New(KindTokenExpired, "Token expired", http.StatusUnauthorized)
}

func NoIdentity() *APIError {
	return New(KindNoIdentity, "User role not found", http.StatusUnauthorized)
}

func RoleNotPermitted() *APIError {
	return New(KindRoleNotPermitted, "Insufficient permissions", http.StatusForbidden)
}

func RouteNotFound() *APIError {
	return New(KindRouteNotFound, "Route not found", http.StatusNotFound)
}

// ServiceUnavailable uses the per-target message fixed at configuration time,
// e.g. "Brief service unavailable".
func ServiceUnavailable(message string) *APIError {
	return New(KindServiceUnavailable, message, http.StatusServiceUnavailable)
}

func InvalidCredentials() *APIError {
	return New(KindInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func AccountDeactivated() *APIError {
	return New(KindAccountDeactivated, "Account is deactivated", http.StatusUnauthorized)
}

func DuplicateEmail() *APIError {
	return New(KindDuplicateEmail, "User with this email already exists", http.StatusConflict)
}

func Validation(errors any) *APIError {
	return New(KindValidation, "Validation failed", http.StatusBadRequest).With("errors", errors)
}

// Internal wraps an uncategorized fault. message is what the caller sees
// ("Internal server error", "Authentication failed", ...); cause is only logged.
func Internal(message string, cause error) *APIError {
	e := New(KindInternal, message, http.StatusInternalServerError)
	e.Err = cause
	return e
}
