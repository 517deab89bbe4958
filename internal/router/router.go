package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campus-gateway/internal/config"
	"campus-gateway/internal/handler"
	"campus-gateway/internal/middleware"
	"campus-gateway/internal/model"
)

// Observability carries the metrics collectors and the registry served on
// /metrics. A nil Gatherer disables the endpoint.
type Observability struct {
	HTTP     *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}

func base(cfg *config.Config, obs Observability) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(obs.HTTP.Handler)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	if obs.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(obs.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, model.APIResponse{Success: false, Message: "Route not found"})
}

// NewAuthService builds the credential service router.
func NewAuthService(cfg *config.Config, obs Observability, auth *handler.AuthHandler, health *handler.HealthHandler) http.Handler {
	r := base(cfg, obs)

	r.Get("/health", health.Health)

	r.Route("/api/auth", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout, "Request timed out"))
		api.Post("/register", auth.Register)
		api.Post("/login", auth.Login)
	})

	r.NotFound(notFound)

	return r
}

// NewGateway builds the gateway router. /health and /api/admin are answered
// locally; every other path goes to dispatcher.
func NewGateway(
	cfg *config.Config,
	obs Observability,
	authMiddleware *middleware.AuthMiddleware,
	dispatcher http.Handler,
	health *handler.HealthHandler,
	admin *handler.AdminHandler,
) http.Handler {
	r := base(cfg, obs)

	r.Get("/health", health.Health)

	adminOnly := r.With(authMiddleware.RequireAuth, middleware.RequireRoles(model.RoleAdmin))
	adminOnly.HandleFunc("/api/admin", admin.Overview)
	adminOnly.HandleFunc("/api/admin/*", admin.Overview)

	r.Handle("/*", dispatcher)

	return r
}
