// Package acceptor implements the worker pool and accept loop: a
// goroutine per connection, with admission-control throttling driven by
// the live OS thread count, and a shutdown flag that is only ever
// observed between connections, never polled by in-flight workers.
package acceptor

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"jalocald/internal/config"
	"jalocald/internal/framing"
	"jalocald/internal/handler"
	"jalocald/internal/lifecycle"
	"jalocald/internal/logging"
	"jalocald/internal/store"
)

// maxSocketPath is the portable sun_path capacity (108 bytes on Linux,
// including the trailing NUL).
const maxSocketPath = 107

// acceptPollInterval bounds how long a blocked Accept can outlive the
// shutdown flag being set.
const acceptPollInterval = 250 * time.Millisecond

// Acceptor owns the listening UNIX socket and hands off one goroutine
// per accepted connection.
type Acceptor struct {
	ln         *net.UnixListener
	socketPath string

	cfg        *config.Snapshot
	store      *store.Gateway
	signingKey *rsa.PrivateKey
	logger     *slog.Logger

	signals *lifecycle.SignalWatcher
	threads threadCounter
}

// threadCounter abstracts lifecycle.ThreadCounter so tests can fake the
// live OS thread count without touching /proc.
type threadCounter interface {
	Count() int
}

// Listen binds cfg.SocketPath, creating missing parent directories. A
// pre-existing file at the socket path refuses startup outright — it may
// belong to another live daemon, and unlinking it would hijack that
// daemon's socket.
func Listen(cfg *config.Snapshot, st *store.Gateway, signingKey *rsa.PrivateKey, signals *lifecycle.SignalWatcher, logger *slog.Logger) (*Acceptor, error) {
	logger = logging.Default(logger).With("component", "acceptor")

	if len(cfg.SocketPath) > maxSocketPath {
		return nil, fmt.Errorf("acceptor: socket path %q exceeds sun_path capacity (%d bytes)", cfg.SocketPath, maxSocketPath)
	}
	if _, err := os.Stat(cfg.SocketPath); err == nil {
		return nil, fmt.Errorf("acceptor: socket path %q already exists; refusing to start", cfg.SocketPath)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0o750); err != nil {
		return nil, fmt.Errorf("acceptor: create socket dir: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("acceptor: resolve socket path: %w", err)
	}
	// The kernel's default listen backlog applies here; Go's net package
	// does not expose the backlog argument.
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("acceptor: listen: %w", err)
	}

	return &Acceptor{
		ln:         ln,
		socketPath: cfg.SocketPath,
		cfg:        cfg,
		store:      st,
		signingKey: signingKey,
		logger:     logger,
		signals:    signals,
		threads:    lifecycle.NewThreadCounter(logger),
	}, nil
}

// Close stops accepting and unlinks the socket file. Listen refuses
// pre-existing paths, so the file being unlinked is always ours.
func (a *Acceptor) Close() error {
	err := a.ln.Close()
	if rerr := os.Remove(a.socketPath); rerr != nil && !os.IsNotExist(rerr) {
		if err == nil {
			err = rerr
		}
	}
	return err
}

// Run is the accept loop. It returns when the shutdown flag is set, ctx
// is canceled, or the listener is closed. In-flight workers are left to
// finish their current record on their own.
func (a *Acceptor) Run(ctx context.Context) error {
	for {
		if a.signals.ShouldExit.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d := a.throttleDelay(); d > 0 {
			time.Sleep(d)
		}

		if a.signals.ShouldExit.Load() {
			return nil
		}

		// Bounded accept so a quiet socket still observes shutdown.
		if err := a.ln.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return fmt.Errorf("acceptor: set accept deadline: %w", err)
		}
		conn, err := a.ln.AcceptUnix()
		if err != nil {
			if a.signals.ShouldExit.Load() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("acceptor: accept: %w", err)
		}
		if a.signals.ShouldExit.Load() {
			_ = conn.Close()
			return nil
		}

		go a.serve(conn)
	}
}

// throttleDelay computes the accept-loop backoff from the live thread
// count, mirroring the original's exponential-backoff admission control:
// delay = min(d_max, d_min * 2^(k-1)) where k = threadCount - threshold.
// A thread count of zero (unavailable) disables throttling for this
// iteration.
func (a *Acceptor) throttleDelay() time.Duration {
	threshold := a.cfg.AcceptDelayThreadCount
	if threshold <= 0 {
		return 0
	}

	count := a.threads.Count()
	if count <= 0 || count <= threshold {
		return 0
	}

	k := count - threshold
	delayUS := a.cfg.AcceptDelayIncrementUS
	for i := 1; i < k; i++ {
		delayUS *= 2
		if delayUS >= a.cfg.AcceptDelayMaxUS {
			delayUS = a.cfg.AcceptDelayMaxUS
			break
		}
	}
	if delayUS > a.cfg.AcceptDelayMaxUS {
		delayUS = a.cfg.AcceptDelayMaxUS
	}
	return time.Duration(delayUS) * time.Microsecond
}

// serve handles records from one connection until the peer closes or a
// record fails. Records on a single connection commit in the order they
// arrive; an error on any record drops the whole connection.
func (a *Acceptor) serve(conn *net.UnixConn) {
	defer conn.Close()

	reader := framing.NewReader(conn)
	hctx := &handler.Context{
		Reader:       reader,
		Store:        a.store,
		SigningKey:   a.signingKey,
		ManifestMeta: a.cfg.ManifestSysMeta,
		Logger:       a.logger,
	}

	for {
		h, err := reader.RecvHeader()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Debug("failed to read header, closing connection", "error", err)
			}
			return
		}

		if err := handler.Dispatch(hctx, h); err != nil {
			a.logger.Debug("handler failed, closing connection", "kind", h.Kind, "error", err)
			return
		}
	}
}
