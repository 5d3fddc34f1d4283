// Package lifecycle provides process-level concerns shared by the
// acceptor: the shutdown flag driven by signals, and live OS thread
// counting used for accept-loop admission control.
package lifecycle

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SignalWatcher sets ShouldExit once on receipt of SIGTERM, SIGINT, or
// SIGABRT, mirroring the single shared handler the original daemon
// installs for all three signals.
type SignalWatcher struct {
	ShouldExit atomic.Bool
	ch         chan os.Signal
}

// NewSignalWatcher registers the signal handler and begins watching.
// Call Stop to unregister when the caller is shutting down cleanly for
// another reason.
func NewSignalWatcher() *SignalWatcher {
	w := &SignalWatcher{ch: make(chan os.Signal, 1)}
	signal.Notify(w.ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGABRT)
	go w.run()
	return w
}

func (w *SignalWatcher) run() {
	for range w.ch {
		w.ShouldExit.Store(true)
	}
}

// Stop unregisters the signal handler.
func (w *SignalWatcher) Stop() {
	signal.Stop(w.ch)
	close(w.ch)
}
