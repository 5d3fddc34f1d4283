package lifecycle

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// daemonizedEnv marks a re-exec'd child so Daemonize knows not to fork
// again.
const daemonizedEnv = "JALOCALD_DAEMONIZED"

// Daemonize detaches the process from its controlling terminal by
// re-executing the current binary in a new session, with stdio
// redirected to logDir/daemon.log. In the parent it starts the child and
// returns (false, nil) without exiting; in the re-exec'd child it does
// nothing and returns (true, nil). The caller checks the returned bool:
// the child proceeds with startup, the parent returns and exits.
//
// Go cannot safely call the bare fork() the original daemon uses (a
// forked child with multiple OS threads already running is not
// portably safe), so this follows the idiomatic Go substitute: re-exec
// with Setsid, which gives the same "detached, new session, no
// controlling terminal" result.
func Daemonize(logDir string) (child bool, err error) {
	if os.Getenv(daemonizedEnv) == "1" {
		return true, nil
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o750); err != nil {
			return false, fmt.Errorf("daemonize: create log dir: %w", err)
		}
	}

	logPath := "/dev/null"
	if logDir != "" {
		logPath = logDir + "/daemon.log"
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return false, fmt.Errorf("daemonize: open log file: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("daemonize: resolve executable: %w", err)
	}

	proc, err := os.StartProcess(exe, os.Args, &os.ProcAttr{
		Dir:   "/",
		Env:   append(os.Environ(), daemonizedEnv+"=1"),
		Files: []*os.File{nil, logFile, logFile},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return false, fmt.Errorf("daemonize: start process: %w", err)
	}

	if err := proc.Release(); err != nil {
		return false, fmt.Errorf("daemonize: release process: %w", err)
	}
	return false, nil
}

// WritePIDFile writes the current process ID to path, truncating any
// previous contents. Matches the reference implementation's pid-file
// contract: plain decimal, no trailing metadata.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// RemovePIDFile removes a pid file written by WritePIDFile. Missing
// files are not an error.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}
