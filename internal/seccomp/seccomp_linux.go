//go:build linux && amd64

// Package seccomp installs the three syscall-filter stages the daemon
// passes through on its way from startup to steady state: a narrow
// pre-init stage that only traps fcntl(F_SETFL), a startup stage that
// allows the union of startup and steady-state syscalls, and a final
// steady-state stage installed immediately before the accept loop that
// allows only steady-state syscalls.
package seccomp

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"jalocald/internal/config"
)

// Action is a filter's default disposition for syscalls not covered by
// an explicit rule.
type Action int

const (
	ActionAllow Action = iota
	ActionTrap
)

// DeniedCall names one syscall that is trapped regardless of the
// default action, used by the disallow stage to trap fcntl(F_SETFL)
// under an otherwise permissive filter.
type DeniedCall struct {
	Name string
	// Arg1Equals, if non-nil, restricts the trap to calls whose second
	// argument (args[1]) equals this value (used for fcntl's cmd argument).
	Arg1Equals *uint32
}

// Stage describes one seccomp filter to install.
type Stage struct {
	DefaultAction Action
	Allow         []string
	Deny          []DeniedCall
}

const (
	retAllow = 0x7fff0000 // SECCOMP_RET_ALLOW
	retTrap  = 0x00020000 // SECCOMP_RET_TRAP
	retKill  = 0x00000000 // SECCOMP_RET_KILL_THREAD, not emitted by build
)

// Install builds a classic-BPF program for stage and loads it via
// PR_SET_SECCOMP. Each named syscall is installed exactly once; a
// resolution failure or install failure is always fatal, never
// retried or ignored.
func Install(stage Stage) error {
	prog, err := build(stage)
	if err != nil {
		return err
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: set no_new_privs: %w", err)
	}

	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, uintptr(unix.SECCOMP_MODE_FILTER), uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return fmt.Errorf("seccomp: install filter: %w", err)
	}
	return nil
}

// InstallDisallowStage installs the pre-init stage: default ALLOW, with
// an explicit TRAP on fcntl(F_SETFL).
func InstallDisallowStage() error {
	setfl := uint32(unix.F_SETFL)
	return Install(Stage{
		DefaultAction: ActionAllow,
		Deny: []DeniedCall{
			{Name: "fcntl", Arg1Equals: &setfl},
		},
	})
}

// InstallStartupStage installs the startup stage: default TRAP, allowing
// the union of startup and steady-state syscalls.
func InstallStartupStage(cfg config.SeccompConfig) error {
	allow := union(cfg.StartupSyscalls, cfg.SteadyStateSyscalls)
	return Install(Stage{DefaultAction: ActionTrap, Allow: allow})
}

// InstallSteadyStateStage installs the final stage, immediately before
// the accept loop: default TRAP, allowing only steady-state syscalls.
func InstallSteadyStateStage(cfg config.SeccompConfig) error {
	return Install(Stage{DefaultAction: ActionTrap, Allow: cfg.SteadyStateSyscalls})
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// build compiles stage into a classic-BPF program that loads the
// syscall number (the nr field of seccomp_data, offset 0), compares it
// against each rule, and falls through to the default action.
func build(stage Stage) ([]unix.SockFilter, error) {
	var prog []unix.SockFilter

	// Load syscall number into the accumulator.
	prog = append(prog, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, 0))

	defaultRet := uint32(retTrap)
	if stage.DefaultAction == ActionAllow {
		defaultRet = retAllow
	}

	for _, d := range stage.Deny {
		nr, err := resolve(d.Name)
		if err != nil {
			return nil, err
		}
		if d.Arg1Equals == nil {
			// Match falls through to the trap; mismatch skips it.
			prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1))
			prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, retTrap))
			continue
		}
		// Syscall number mismatch skips both the arg check and the
		// trap (3 instructions); a match falls through to the arg
		// check immediately below.
		prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 3))
		// seccomp_data.args[1]'s low 32 bits live at offset 16+8*1=24
		// on a little-endian 64-bit arch.
		prog = append(prog, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, 24))
		prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, *d.Arg1Equals, 0, 1))
		prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, retTrap))
		// Reload the syscall number for any rules that follow.
		prog = append(prog, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, 0))
	}

	for _, name := range union(stage.Allow, nil) {
		nr, err := resolve(name)
		if err != nil {
			return nil, err
		}
		// Match falls through to the allow; mismatch skips to the next
		// rule (or the default return).
		prog = append(prog, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1))
		prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, retAllow))
	}

	prog = append(prog, stmt(unix.BPF_RET|unix.BPF_K, defaultRet))
	return prog, nil
}

func stmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func jump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}
