//go:build linux && amd64

package seccomp

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// syscallNumbers maps the syscall names used in configuration files to
// their amd64 syscall numbers. golang.org/x/sys/unix has no
// libseccomp-style name resolver, so this table stands in for
// seccomp_syscall_resolve_name, covering the syscalls this daemon's
// startup and steady-state stages actually need.
var syscallNumbers = map[string]uintptr{
	"read":           unix.SYS_READ,
	"write":          unix.SYS_WRITE,
	"open":           unix.SYS_OPEN,
	"openat":         unix.SYS_OPENAT,
	"close":          unix.SYS_CLOSE,
	"fstat":          unix.SYS_FSTAT,
	"lseek":          unix.SYS_LSEEK,
	"mmap":           unix.SYS_MMAP,
	"munmap":         unix.SYS_MUNMAP,
	"brk":            unix.SYS_BRK,
	"rt_sigaction":   unix.SYS_RT_SIGACTION,
	"rt_sigreturn":   unix.SYS_RT_SIGRETURN,
	"rt_sigprocmask": unix.SYS_RT_SIGPROCMASK,
	"ioctl":          unix.SYS_IOCTL,
	"fcntl":          unix.SYS_FCNTL,
	"accept":         unix.SYS_ACCEPT,
	"accept4":        unix.SYS_ACCEPT4,
	"bind":           unix.SYS_BIND,
	"listen":         unix.SYS_LISTEN,
	"socket":         unix.SYS_SOCKET,
	"connect":        unix.SYS_CONNECT,
	"recvmsg":        unix.SYS_RECVMSG,
	"sendmsg":        unix.SYS_SENDMSG,
	"recvfrom":       unix.SYS_RECVFROM,
	"sendto":         unix.SYS_SENDTO,
	"getsockopt":     unix.SYS_GETSOCKOPT,
	"setsockopt":     unix.SYS_SETSOCKOPT,
	"unlink":         unix.SYS_UNLINK,
	"unlinkat":       unix.SYS_UNLINKAT,
	"rename":         unix.SYS_RENAME,
	"mkdir":          unix.SYS_MKDIR,
	"stat":           unix.SYS_STAT,
	"fstatfs":        unix.SYS_FSTATFS,
	"fsync":          unix.SYS_FSYNC,
	"ftruncate":      unix.SYS_FTRUNCATE,
	"pread64":        unix.SYS_PREAD64,
	"pwrite64":       unix.SYS_PWRITE64,
	"clone":          unix.SYS_CLONE,
	"futex":          unix.SYS_FUTEX,
	"exit":           unix.SYS_EXIT,
	"exit_group":     unix.SYS_EXIT_GROUP,
	"nanosleep":      unix.SYS_NANOSLEEP,
	"clock_gettime":  unix.SYS_CLOCK_GETTIME,
	"gettimeofday":   unix.SYS_GETTIMEOFDAY,
	"getrandom":      unix.SYS_GETRANDOM,
	"sched_yield":    unix.SYS_SCHED_YIELD,
	"getpid":         unix.SYS_GETPID,
	"gettid":         unix.SYS_GETTID,
	"tgkill":         unix.SYS_TGKILL,
	"prctl":          unix.SYS_PRCTL,
	"madvise":        unix.SYS_MADVISE,
	"mprotect":       unix.SYS_MPROTECT,
	"flock":          unix.SYS_FLOCK,
	"dup":            unix.SYS_DUP,
	"dup2":           unix.SYS_DUP2,
	"pipe":           unix.SYS_PIPE,
	"pipe2":          unix.SYS_PIPE2,
	"epoll_create1":  unix.SYS_EPOLL_CREATE1,
	"epoll_ctl":      unix.SYS_EPOLL_CTL,
	"epoll_wait":     unix.SYS_EPOLL_WAIT,
	"epoll_pwait":    unix.SYS_EPOLL_PWAIT,
}

func resolve(name string) (uintptr, error) {
	nr, ok := syscallNumbers[name]
	if !ok {
		return 0, fmt.Errorf("seccomp: unknown syscall name %q", name)
	}
	return nr, nil
}
