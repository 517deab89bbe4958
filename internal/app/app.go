package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"campus-gateway/internal/config"
	"campus-gateway/internal/database"
	"campus-gateway/internal/gateway"
	"campus-gateway/internal/handler"
	"campus-gateway/internal/middleware"
	"campus-gateway/internal/repository"
	"campus-gateway/internal/router"
	"campus-gateway/internal/security"
	"campus-gateway/internal/service"
)

const (
	AuthServiceName    = "auth-service"
	GatewayServiceName = "api-gateway"
)

type App struct {
	name            string
	server          *http.Server
	shutdownTimeout time.Duration
	// cleanupFuncs run after the server has stopped accepting requests.
	cleanupFuncs []func()
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func observability(reg *prometheus.Registry, subsystem string) (router.Observability, error) {
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg, Subsystem: subsystem})
	if err != nil {
		return router.Observability{}, fmt.Errorf("failed to register http metrics: %w", err)
	}
	return router.Observability{HTTP: httpMetrics, Gatherer: reg}, nil
}

// AuthHandler assembles the credential service over users. The returned
// AuthService must be waited on before users is closed.
func AuthHandler(cfg *config.Config, users service.UserStore, reg *prometheus.Registry) (http.Handler, *service.AuthService, error) {
	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService := service.NewAuthService(users, security.NewBcryptHasher(cfg.BcryptCost), tokens,
		service.WithLastLoginTimeout(cfg.LastLoginWait),
	)

	obs, err := observability(reg, "auth")
	if err != nil {
		return nil, nil, err
	}

	h := router.NewAuthService(cfg, obs, handler.NewAuthHandler(authService), handler.NewHealthHandler(AuthServiceName))
	return h, authService, nil
}

// GatewayHandler assembles the gateway: routing table, forwarders, dispatcher
// and the locally answered routes.
func GatewayHandler(cfg *config.Config, reg *prometheus.Registry) (http.Handler, error) {
	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	targets := gateway.DefaultTargets(cfg)
	table, err := gateway.NewRoutingTable(gateway.TargetNames(targets), gateway.DefaultRules()...)
	if err != nil {
		return nil, fmt.Errorf("invalid routing table: %w", err)
	}
	for _, shadow := range table.Shadowed() {
		slog.Warn("route rule is unreachable", "rule", shadow.Rule, "shadowed_by", shadow.ShadowBy)
	}

	transport := gateway.NewTransport(gateway.ProxyOptions{
		DialTimeout:           cfg.ProxyDialTimeout,
		ResponseHeaderTimeout: cfg.ProxyResponseTimeout,
	})
	forwarders := make([]*gateway.Forwarder, 0, len(targets))
	for _, target := range targets {
		f, err := gateway.NewForwarder(target, transport)
		if err != nil {
			return nil, err
		}
		forwarders = append(forwarders, f)
		slog.Info("upstream configured", "target", target.Name, "url", target.URL)
	}

	dispatchMetrics, err := gateway.NewDispatchMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	dispatcher, err := gateway.NewDispatcher(table, authMiddleware, forwarders, gateway.WithMetrics(dispatchMetrics))
	if err != nil {
		return nil, err
	}

	obs, err := observability(reg, "gateway_http")
	if err != nil {
		return nil, err
	}

	return router.NewGateway(cfg, obs, authMiddleware, dispatcher,
		handler.NewHealthHandler(GatewayServiceName), handler.NewAdminHandler()), nil
}

func NewAuth(cfg *config.Config) (*App, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	var (
		users   service.UserStore
		cleanup []func()
	)

	switch cfg.UserStore {
	case config.UserStoreMemory:
		slog.Warn("using in-memory user store; accounts are lost on restart")
		users = repository.NewMemoryUserRepository()
	default:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(context.Background(), database.Options{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		slog.Info("database ready")

		users = repository.NewUserRepository(db.Pool)
		cleanup = append(cleanup, db.Close)
	}

	h, authService, err := AuthHandler(cfg, users, NewRegistry())
	if err != nil {
		for _, fn := range cleanup {
			fn()
		}
		return nil, err
	}

	// Pending last-login writes must land before the pool closes.
	cleanup = append([]func(){authService.Wait}, cleanup...)

	return newApp(AuthServiceName, cfg, h, cleanup), nil
}

func NewGateway(cfg *config.Config) (*App, error) {
	h, err := GatewayHandler(cfg, NewRegistry())
	if err != nil {
		return nil, err
	}
	return newApp(GatewayServiceName, cfg, h, nil), nil
}

func newApp(name string, cfg *config.Config, h http.Handler, cleanup []func()) *App {
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &App{
		name: name,
		server: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           h,
			ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
			WriteTimeout:      cfg.ServerWriteTimeout,
			IdleTimeout:       cfg.ServerIdleTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		cleanupFuncs:    cleanup,
	}
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "service", a.name, "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped", "service", a.name)
	return nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}
