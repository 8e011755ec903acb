package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/databuckets/internal/bucket"
	"github.com/dokzlo13/databuckets/internal/config"
	luart "github.com/dokzlo13/databuckets/internal/lua"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, store *bucket.Store) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(store),
	}
}

// LoadScript loads and executes the configured Lua script, if any.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	if s.cfg.Script == "" {
		log.Debug().Msg("No Lua script configured")
		return nil
	}
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context) {
	s.Runtime.Start(ctx)
}

// Submit queues work on the Lua VM without waiting for it.
func (s *LuaService) Submit(ctx context.Context, work luart.Work) error {
	return s.Runtime.Submit(ctx, work)
}

// Exec runs a chunk of Lua source on the VM and waits for it.
func (s *LuaService) Exec(ctx context.Context, source string) error {
	return s.Runtime.Exec(ctx, source)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
