package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that stop the service.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalContext returns a context cancelled on the first SIGINT or SIGTERM.
// A second signal is left to the default handler, so it kills the process
// if graceful shutdown hangs. Call stop to release the signal handler.
func SignalContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(parent, ShutdownSignals...)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx, cancel
}
