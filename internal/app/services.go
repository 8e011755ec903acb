package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/databuckets/internal/bucket"
	"github.com/dokzlo13/databuckets/internal/config"
	"github.com/dokzlo13/databuckets/internal/db"
	"github.com/dokzlo13/databuckets/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB      *db.DB
	Metrics *prometheus.Registry

	// Bucket store and its process cache
	Cache *bucket.Cache
	Store *bucket.Store

	// High-level services
	Lua    *LuaService
	Health *HealthService

	started atomic.Bool
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	s.Metrics = prometheus.NewRegistry()
	s.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize backing store
	var repo bucket.Repository
	if cfg.Database.IsMemory() {
		log.Warn().Msg("Using in-memory bucket storage, data will not survive a restart")
		repo = storage.NewMemoryRepository()
	} else {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		repo = storage.NewSQLiteRepository(database.DB)
	}

	// Initialize bucket store
	opts := []bucket.Option{bucket.WithMetrics(s.Metrics)}
	if !cfg.Cache.IsEnabled() {
		opts = append(opts, bucket.WithCacheDisabled())
	}

	s.Cache = bucket.NewCache()
	store, err := bucket.NewStore(repo, s.Cache, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Store = store

	log.Info().
		Str("cache", s.Cache.ID()).
		Str("driver", cfg.Database.Driver).
		Bool("caching", cfg.Cache.IsEnabled()).
		Msg("Bucket store ready")

	// Initialize Lua service
	s.Lua = NewLuaService(cfg, s.Store)

	// Initialize health service
	s.Health = NewHealthService(cfg, s.Metrics, s.ready)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Warm the cache for the zone instance this process serves
	if s.cfg.Zone.Preload && s.cfg.Zone.ID > 0 {
		s.Store.LoadZoneCache(s.cfg.Zone.ID, s.cfg.Zone.Instance)
	}

	// Load Lua script before starting worker
	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	// Start all background services
	s.Store.StartCleanup(ctx, s.cfg.Cleanup.GetInterval())
	s.Lua.Start(ctx)
	s.Health.Start(ctx)

	s.started.Store(true)
	return nil
}

// ready reports whether buckets can be served: services are started and the
// database, if any, answers a ping.
func (s *Services) ready(ctx context.Context) error {
	if !s.started.Load() {
		return errors.New("services not started")
	}
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
	}
	return nil
}

// Sweep runs one expired bucket sweep.
func (s *Services) Sweep() int64 {
	return s.Store.CleanupExpired()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.started.Store(false)
	if s.Store != nil {
		s.Store.StopCleanup()
		s.Store.ClearCache()
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
