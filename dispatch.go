package main

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const defaultHandlerTimeout = 5 * time.Minute

// Handler runs one command for one update.
type Handler func(ctx context.Context, upd Update, args string)

// Dispatcher runs handlers in their own goroutines. A handler outlives the
// poller's context and is bounded only by its own timeout.
type Dispatcher struct {
	timeout time.Duration
	wg      sync.WaitGroup

	dispatched atomic.Int64
	finished   atomic.Int64
	panicked   atomic.Int64
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	return &Dispatcher{timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, h Handler, upd Update, args string) {
	d.dispatched.Add(1)
	d.wg.Add(1)
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer d.finished.Add(1)
		defer func() {
			if r := recover(); r != nil {
				d.panicked.Add(1)
				slog.Error("handler panic", "cmd", cmd, "chat", upd.ChatID, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		start := time.Now()
		h(hctx, upd, args)
		slog.Debug("handler done", "cmd", cmd, "chat", upd.ChatID, "took", time.Since(start))
	}()
}

// Wait blocks until every dispatched handler has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type DispatchStats struct {
	Dispatched int64
	Finished   int64
	Panicked   int64
}

func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Dispatched: d.dispatched.Load(),
		Finished:   d.finished.Load(),
		Panicked:   d.panicked.Load(),
	}
}
