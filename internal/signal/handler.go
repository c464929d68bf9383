// Package signal translates SIGINT/SIGTERM into context cancellation so a
// recipe run can stop cooperatively: running steps see their context end and
// the engine reports them cancelled instead of killed mid-write.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler listens for interrupt signals and cancels its context when one
// arrives. Repeated signals are absorbed; only the first has effect.
type Handler struct {
	ctx         context.Context //nolint:containedctx // the handler owns this context's lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{}
	once        sync.Once
	stopOnce    sync.Once
	sigChan     chan os.Signal
}

// NewHandler starts listening for SIGINT and SIGTERM. Call Stop when the
// interruptible work is finished.
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		// Buffered so signal.Notify never drops a signal while the
		// listener goroutine is busy.
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the context cancelled on interrupt. Pass it to everything
// that should stop on Ctrl+C.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel closed once an interrupt signal arrives,
// letting callers distinguish a signal from ordinary context cancellation.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Stop unregisters the signal listener and cancels the context. Safe to
// call more than once.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

func (h *Handler) handleSignal() {
	h.once.Do(func() {
		h.cancel()
		close(h.interrupted)
	})
}

// listen drains the signal channel until Stop is called or the context ends.
// Draining keeps late signals from blocking delivery; they are ignored after
// the first.
func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
