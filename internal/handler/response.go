package handler

import (
	"net/http"
	"time"

	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func writeSuccess(w http.ResponseWriter, status int, message string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["timestamp"] = timestamp()

	middleware.WriteJSON(w, status, model.APIResponse{
		Success: true,
		Message: message,
		Fields:  fields,
	})
}

// writeError renders err with a timestamp. Uncategorized errors become a 500
// with fallback as the message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	apiErr := middleware.AsAPIError(err, fallback)
	middleware.WriteError(w, apiErr.With("timestamp", timestamp()), fallback)
}
