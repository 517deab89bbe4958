package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"campus-gateway/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			// The reverse proxy aborts a half-written response this way.
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered", "error", fmt.Sprintf("%v", recovered), "stack", string(debug.Stack()))
			WriteError(w, apierror.New(apierror.KindInternal, "Internal server error", http.StatusInternalServerError), "")
		}()

		next.ServeHTTP(w, r)
	})
}
