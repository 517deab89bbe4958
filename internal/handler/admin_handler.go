package handler

import (
	"net/http"

	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
	"campus-gateway/pkg/apierror"
)

type AdminHandler struct{}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

// Overview echoes the caller's identity. Mounted behind RequireAuth and
// RequireRoles(ADMIN).
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apierror.NoIdentity(), "")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, model.APIResponse{
		Success: true,
		Message: "Admin endpoint accessed successfully",
		Fields:  map[string]any{"user": identity},
	})
}
