package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TickerPulse/internal/domain/repository"
	"TickerPulse/internal/usecase"
	"TickerPulse/pkg/cache"
	"TickerPulse/pkg/config"
	xhttp "TickerPulse/pkg/http"
	"TickerPulse/pkg/http/middleware"
	applogger "TickerPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	store      repository.TickerStore
	events     repository.SyncEvents
	cache      cache.Service
	dashboard  *usecase.Dashboard
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	store repository.TickerStore,
	events repository.SyncEvents,
	c cache.Service,
	dashboard *usecase.Dashboard,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		store:     store,
		events:    events,
		cache:     c,
		dashboard: dashboard,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMiddleware(
			middleware.Metrics(a.l, time.Second),
		))
		if a.cfg.Metrics.Path != "" {
			opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
		}
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	opts = append(opts, xhttp.WithMiddleware(a.healthRoute()))

	a.httpServer = xhttp.NewServer(a.handler, opts...)

	if a.cfg.Sync.RetentionDays > 0 {
		go a.pruneLoop(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("tickerpulse started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("provider", a.cfg.Provider.Kind),
		applogger.String("storage", a.cfg.Storage.Type),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// pruneLoop drops points past the retention horizon once a day.
func (a *App) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.dashboard.Prune(ctx, a.cfg.Sync.RetentionDays); err != nil {
				a.l.Warn("prune failed", applogger.Error(err))
			}
		}
	}
}

// healthRoute reports storage health on /healthz without entering the
// regular handler chain.
func (a *App) healthRoute() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path != "/healthz" {
				return next(c)
			}
			if err := a.store.Health(c.Request().Context()); err != nil {
				return c.JSON(503, map[string]string{"status": "unhealthy", "error": err.Error()})
			}
			return c.JSON(200, map[string]string{"status": "ok"})
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.events.Close(); err != nil {
		a.l.Warn("events close error", applogger.Error(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.l.Warn("store close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return nil
}
