//go:build !(linux && amd64)

// Package seccomp outside linux/amd64 is a no-op stand-in: the three
// stages still get called in the same order by main(), but privilege
// reduction simply does not engage. This keeps the daemon buildable and
// runnable (with reduced guarantees) on development machines that lack
// Linux's seccomp-bpf or this package's amd64 syscall table.
package seccomp

import "jalocald/internal/config"

// InstallDisallowStage, InstallStartupStage, and InstallSteadyStateStage
// are no-ops outside linux/amd64.
func InstallDisallowStage() error { return nil }

func InstallStartupStage(cfg config.SeccompConfig) error { return nil }

func InstallSteadyStateStage(cfg config.SeccompConfig) error { return nil }

// WatchViolations is a no-op outside linux/amd64: there is no SIGSYS to
// watch for without seccomp installed.
func WatchViolations() error { return nil }
