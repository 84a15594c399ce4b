package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/webpool/api"
	"github.com/searchktools/webpool/config"
	"github.com/searchktools/webpool/core"
	"github.com/searchktools/webpool/core/middleware"
	"github.com/searchktools/webpool/core/observability"
	"github.com/searchktools/webpool/core/router"
)

// App wires configuration, the default endpoints and the pooled server
type App struct {
	cfg     *config.Config
	router  *router.Router
	server  *core.Server
	monitor *observability.Monitor
	users   *api.Users
}

// New creates an application instance. It fails when the worker pool cannot
// be started.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:     cfg,
		router:  router.New(),
		monitor: observability.NewMonitor(),
	}

	a.router.Use(middleware.Recovery(), middleware.RequestID(), middleware.Metrics(a.monitor, a.router))
	if !cfg.IsProduction() {
		a.router.Use(middleware.Logger())
	}
	if cfg.RateLimit > 0 {
		a.router.Use(middleware.RateLimiter(cfg.RateLimit))
	}

	a.users = api.Register(a.router, api.Options{
		ServerName: cfg.ServerName,
		SleepDelay: cfg.SleepDelay,
		IndexFile:  cfg.IndexFile,
		Stats:      func() any { return a.server.Stats() },
	})

	server, err := core.NewServer(core.ServerConfig{
		Workers:         cfg.Workers,
		QueueSize:       cfg.QueueSize,
		MaxConnections:  cfg.MaxConnections,
		MaxRequestBytes: cfg.MaxRequestBytes,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
		Name:            cfg.ServerName,
		ReusePort:       cfg.ReusePort,
	}, a.router, core.WithMonitor(a.monitor))
	if err != nil {
		return nil, fmt.Errorf("starting server: %w", err)
	}
	a.server = server

	return a, nil
}

// Router returns the router for registering additional routes
func (a *App) Router() *router.Router {
	return a.router
}

// Server returns the underlying server
func (a *App) Server() *core.Server {
	return a.server
}

// Users returns the store behind /api/users
func (a *App) Users() *api.Users {
	return a.users
}

// Run listens on the configured address and serves until SIGINT or SIGTERM,
// then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := a.server.Listen(ctx, a.cfg.Addr())
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then waits up to ShutdownTimeout for
// accepted connections to finish.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	log.Printf("Server running on http://%s [%s]", ln.Addr(), a.cfg.Env)
	a.logRoutes()

	served := make(chan error, 1)
	go func() {
		served <- a.server.Serve(ln)
	}()

	select {
	case err := <-served:
		// listener failed on its own; stop the workers too
		a.shutdown()
		return err
	case <-ctx.Done():
		log.Printf("Shutting down...")
	}

	if err := a.shutdown(); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, core.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) shutdown() error {
	timeout := time.Duration(a.cfg.ShutdownTimeout) * time.Second
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Printf("Server stopped")
	return nil
}

func (a *App) logRoutes() {
	log.Printf("Available endpoints:")
	for _, r := range a.router.Routes() {
		log.Printf("  %-6s %s", r.Method, r.Path)
	}
}
