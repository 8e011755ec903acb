package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/databuckets/internal/config"
)

// App owns the service container and its lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New builds every service without starting any of them.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Services returns the service container.
func (a *App) Services() *Services {
	return a.services
}

// Start starts all services. Cancelling ctx begins shutdown.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.services.Start(a.ctx); err != nil {
		a.cancel()
		return err
	}

	log.Info().
		Str("cache", a.services.Cache.ID()).
		Msg("databuckets started")
	return nil
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// Stop cancels the application context and stops every service, giving up
// after the configured shutdown timeout.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.services == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- a.services.Stop() }()

	timeout := a.cfg.GetShutdownTimeout()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("shutdown did not finish within %s", timeout)
	}
}

// Sweep deletes expired buckets from the backing store once.
func (a *App) Sweep() int64 {
	if a.services == nil {
		return 0
	}
	return a.services.Sweep()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
		log.Warn().Msg("Received shutdown signal")
	}()
	return ctx
}
