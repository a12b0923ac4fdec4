// Package shutdown coordinates interrupt handling: on SIGINT/SIGTERM the run
// context is cancelled so loops stop taking new work, and the browser
// resource is released exactly once.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type Coordinator struct {
	logger  *slog.Logger
	release func()
	once    sync.Once
}

// NewCoordinator wraps the release action (typically browser.Close) so it
// runs at most once regardless of how the process exits.
func NewCoordinator(logger *slog.Logger, release func()) *Coordinator {
	return &Coordinator{
		logger:  logger.With("component", "shutdown"),
		release: release,
	}
}

// Notify derives a context that is cancelled on SIGINT/SIGTERM. The signal
// is logged as a warning; the run's loops observe the cancellation
// cooperatively at their next iteration.
func (c *Coordinator) Notify(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			c.logger.Warn("interrupted, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Release runs the release action; safe to call from multiple paths.
func (c *Coordinator) Release() {
	c.once.Do(c.release)
}
