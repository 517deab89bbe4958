package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"campus-gateway/internal/model"
)

// Timeout bounds handler time. On expiry the client receives a 503 failure
// envelope with the given message.
func Timeout(timeout time.Duration, message string) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if message == "" {
		message = "Request timed out"
	}

	body, _ := json.Marshal(model.APIResponse{Success: false, Message: message})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
