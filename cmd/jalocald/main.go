// Command jalocald is the local audit-record ingestion daemon.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to every component via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own "component" attribute
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"jalocald/internal/acceptor"
	"jalocald/internal/config"
	"jalocald/internal/identity"
	"jalocald/internal/lifecycle"
	"jalocald/internal/logging"
	"jalocald/internal/seccomp"
	"jalocald/internal/store"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	var configPath, pidPath string
	var debug, noDaemon, showVersion bool

	cmd := &cobra.Command{
		Use:   "jalocald",
		Short: "Local audit-record ingestion daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version)
				return nil
			}
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if debug {
				filterHandler.SetDefaultLevel(slog.LevelDebug)
			}
			return run(logger, configPath, pidPath, debug, noDaemon)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file path (required)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable verbose diagnostic output")
	cmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "run in the foreground")
	cmd.Flags().StringVarP(&pidPath, "pid", "p", "", "PID-file location")
	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, pidPath string, debug, noDaemon bool) error {
	// Pre-init stage: default ALLOW, trap only the one syscall pattern
	// (fcntl F_SETFL) that must never appear before initialization
	// finishes reading user-controlled config and key files.
	if err := seccomp.InstallDisallowStage(); err != nil {
		return fmt.Errorf("startup: install pre-init seccomp stage: %w", err)
	}
	if err := seccomp.WatchViolations(); err != nil {
		return fmt.Errorf("startup: install seccomp violation handler: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	cfg.Debug = cfg.Debug || debug

	if cfg.Seccomp.Enabled {
		if err := seccomp.InstallStartupStage(cfg.Seccomp); err != nil {
			return fmt.Errorf("startup: install startup seccomp stage: %w", err)
		}
	}

	logger.Info("loaded configuration", "db_root", cfg.DBRoot, "socket_path", cfg.SocketPath)

	// Go has no safe bare fork() for a multi-threaded runtime, so
	// daemonization re-execs the binary under a new session instead of
	// forking the already-listening process (jalu_daemonize's
	// approach). That means detachment must happen before any socket or
	// store state is created in this process: the re-exec'd child builds
	// all of that itself, and the parent's copies would otherwise race
	// it for the same socket path.
	if !noDaemon {
		child, err := lifecycle.Daemonize(cfg.LogDir)
		if err != nil {
			return fmt.Errorf("startup: daemonize: %w", err)
		}
		if !child {
			// Parent process: the re-exec'd child takes over from here.
			return nil
		}
	}

	pidFile := pidPath
	if pidFile == "" {
		pidFile = cfg.PIDFile
	}
	if err := lifecycle.WritePIDFile(pidFile); err != nil {
		return fmt.Errorf("startup: write pid file: %w", err)
	}
	defer lifecycle.RemovePIDFile(pidFile)

	signingKey, _, err := identity.Load(cfg.PrivateKeyPath, cfg.PublicCertPath)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	if !cfg.SignSysMeta {
		signingKey = nil
	}

	st, err := store.Open(store.Config{
		Root:           cfg.DBRoot,
		MaxRecordBytes: cfg.MaxRecordBytes,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("startup: open store: %w", err)
	}
	defer st.Close()

	signals := lifecycle.NewSignalWatcher()
	defer signals.Stop()

	acc, err := acceptor.Listen(cfg, st, signingKey, signals, logger)
	if err != nil {
		return fmt.Errorf("startup: listen: %w", err)
	}
	defer acc.Close()

	if cfg.Seccomp.Enabled {
		if err := seccomp.InstallSteadyStateStage(cfg.Seccomp); err != nil {
			return fmt.Errorf("startup: install steady-state seccomp stage: %w", err)
		}
	}

	if cfg.Debug {
		logger.Debug("ready to accept connections",
			"accept_delay_thread_count", cfg.AcceptDelayThreadCount,
			"accept_delay_increment_us", cfg.AcceptDelayIncrementUS,
			"accept_delay_max_us", cfg.AcceptDelayMaxUS)
	}

	if err := acc.Run(context.Background()); err != nil {
		return fmt.Errorf("accept loop: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
