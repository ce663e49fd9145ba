// Package concurrency provides a single-flight guard: at most one task
// runs at a time, and a request arriving while one is in flight is
// rejected with ErrBusy rather than queued.
package concurrency

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when a task is already in flight.
var ErrBusy = errors.New("operation already in progress")

type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// Busy reports whether a guarded task is currently in flight.
func (g *ConcurrencyGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy
}

// Execute runs task if no other task is in flight, otherwise returns
// ErrBusy immediately. The duplicate request is dropped, not queued.
func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext behaves like Execute but hands the context to the
// task and refuses to start it if the context is already done.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task(ctx)
}

func (g *ConcurrencyGuard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}
