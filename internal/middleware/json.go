package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"campus-gateway/internal/model"
	"campus-gateway/pkg/apierror"
)

func WriteJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// WriteError renders err as {success:false, message, ...}. Errors that are not
// an *apierror.APIError become a 500 carrying fallback and are logged.
func WriteError(w http.ResponseWriter, err error, fallback string) {
	apiErr := AsAPIError(err, fallback)
	if apiErr.Kind == apierror.KindInternal {
		slog.Error("request failed", "message", apiErr.Message, "error", err)
	}

	WriteJSON(w, apiErr.HTTPStatus, model.APIResponse{
		Success: false,
		Message: apiErr.Message,
		Fields:  apiErr.Extra,
	})
}

// AsAPIError returns the *apierror.APIError in err's chain, or an internal
// fault carrying fallback.
func AsAPIError(err error, fallback string) *apierror.APIError {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if fallback == "" {
		fallback = "Internal server error"
	}
	return apierror.Internal(fallback, err)
}
