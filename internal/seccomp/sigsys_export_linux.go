//go:build linux && amd64

package seccomp

// This file holds only the exported violation callback: cgo forbids
// function definitions in the preamble of a file that uses //export,
// so the C-side handler lives in sigsys_linux.go.

import "C"

import (
	"fmt"
	"os"
)

var syscallNames = reverseSyscallNames()

func reverseSyscallNames() map[int]string {
	out := make(map[int]string, len(syscallNumbers))
	for name, nr := range syscallNumbers {
		out[int(nr)] = name
	}
	return out
}

//export goSeccompViolation
func goSeccompViolation(syscallNum C.int, arch C.int) {
	name, ok := syscallNames[int(syscallNum)]
	if !ok {
		name = "unknown"
	}
	fmt.Fprintf(os.Stderr, "Exiting. Disallowed system call: %d: %s.\n", int(syscallNum), name)
	os.Exit(2)
}
