// Package lua hosts the Lua VM that exposes data buckets to gameplay scripts.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/databuckets/internal/bucket"
	"github.com/dokzlo13/databuckets/internal/lua/modules"
)

var (
	// ErrRuntimeClosed is returned once Close has been called.
	ErrRuntimeClosed = errors.New("lua runtime closed")

	// ErrQueueFull is returned by Submit when the worker is saturated.
	ErrQueueFull = errors.New("lua work queue full")
)

// Work runs on the worker goroutine with exclusive access to the VM.
type Work func(L *lua.LState) error

const queueSize = 100

// Runtime owns one Lua VM and the single goroutine allowed to touch it.
// Every script-driven bucket operation runs to completion before the next
// one starts.
type Runtime struct {
	L     *lua.LState
	store *bucket.Store

	queue   chan Work
	closing chan struct{}
	stopped chan struct{}

	// mu orders Start against Close so Close knows whether to wait for the worker.
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRuntime creates a VM with the "buckets" and "log" modules preloaded.
func NewRuntime(store *bucket.Store) *Runtime {
	r := &Runtime{
		L:       lua.NewState(),
		store:   store,
		queue:   make(chan Work, queueSize),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("buckets", modules.NewBucketsModule(store).Loader)

	return r
}

// Submit queues work without waiting for it. Errors returned by the work
// itself are logged.
func (r *Runtime) Submit(ctx context.Context, work Work) error {
	if r.isClosing() {
		return ErrRuntimeClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.queue <- work:
		return nil
	default:
		return ErrQueueFull
	}
}

// Call queues work, waiting for queue space, and returns its result.
func (r *Runtime) Call(ctx context.Context, work Work) error {
	if r.isClosing() {
		return ErrRuntimeClosed
	}

	result := make(chan error, 1)
	wrapped := func(L *lua.LState) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("lua work panicked: %v", rec)
			}
			result <- err
		}()
		return work(L)
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.queue <- wrapped:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// Exec runs a chunk of Lua source on the worker and waits for it.
func (r *Runtime) Exec(ctx context.Context, source string) error {
	return r.Call(ctx, func(L *lua.LState) error {
		return L.DoString(source)
	})
}

// LoadScript runs a script file directly. It must be called before Start.
func (r *Runtime) LoadScript(path string) error {
	if r.isStarted() {
		return fmt.Errorf("cannot load %s: lua worker already running", path)
	}

	log.Info().Str("path", path).Msg("Loading Lua script")
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	log.Info().Str("path", path).Msg("Lua script loaded")
	return nil
}

// Start launches the worker goroutine. It is a no-op if the worker is
// already running or the runtime is closed.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run(ctx)
}

func (r *Runtime) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// run is the worker loop. On context cancellation queued work is drained
// first; on Close it returns without running anything still queued.
func (r *Runtime) run(ctx context.Context) {
	defer close(r.stopped)

	for {
		select {
		case <-r.closing:
			return
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case work := <-r.queue:
					if r.isClosing() {
						return
					}
					r.execute(drain, work)
				default:
					return
				}
			}
		case work := <-r.queue:
			if r.isClosing() {
				return
			}
			r.execute(ctx, work)
		}
	}
}

// Close stops the worker, waits for it to exit and closes the VM.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.closing)
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.stopped
	}
	r.L.Close()
}

func (r *Runtime) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

func (r *Runtime) execute(ctx context.Context, work Work) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Lua work panicked, worker continuing")
		}
	}()

	// Modules read the request context through L.Context()
	r.L.SetContext(ctx)
	if err := work(r.L); err != nil {
		log.Warn().Err(err).Msg("Lua work failed")
	}
}
