//go:build linux && amd64

package seccomp

/*
#define _GNU_SOURCE
#include <signal.h>
#include <string.h>

extern void goSeccompViolation(int syscallNum, int arch);

static void jalocaldSigsysHandler(int sig, siginfo_t *info, void *ucontext) {
	if (info->si_code == 1) { // SYS_SECCOMP
		goSeccompViolation(info->si_syscall, info->si_arch);
	}
}

static int jalocaldInstallSigsysHandler(void) {
	struct sigaction sa;
	memset(&sa, 0, sizeof(sa));
	sa.sa_sigaction = jalocaldSigsysHandler;
	sa.sa_flags = SA_SIGINFO;
	return sigaction(SIGSYS, &sa, NULL);
}
*/
import "C"

import "fmt"

// WatchViolations installs the SIGSYS handler that fires whenever the
// active seccomp filter traps a disallowed syscall. A C-level
// sa_sigaction is required because siginfo_t's si_syscall/si_arch
// fields (populated only for SYS_SECCOMP-originated signals) are not
// reachable through os/signal, which delivers only the bare signal
// number. Mirrors catchSeccompViolation/init_catchSeccompViolation in
// the reference implementation, including the exit(2) policy and the
// stderr message format.
func WatchViolations() error {
	if rc := C.jalocaldInstallSigsysHandler(); rc != 0 {
		return fmt.Errorf("seccomp: install SIGSYS handler failed")
	}
	return nil
}
