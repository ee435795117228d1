// Package rlimit provides named access to POSIX resource limits, mirroring
// the teacher's pkg/util/rlimit package: resources are addressed by their
// RLIMIT_* string name rather than by importing the syscall constant
// directly, which keeps callers (the launcher's stage1 nofiles limit and
// fd-scan bound) from depending on syscall beyond this package.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

var rlimitMap = map[string]int{
	"RLIMIT_CPU":     unix.RLIMIT_CPU,
	"RLIMIT_FSIZE":   unix.RLIMIT_FSIZE,
	"RLIMIT_DATA":    unix.RLIMIT_DATA,
	"RLIMIT_STACK":   unix.RLIMIT_STACK,
	"RLIMIT_CORE":    unix.RLIMIT_CORE,
	"RLIMIT_RSS":     unix.RLIMIT_RSS,
	"RLIMIT_NPROC":   unix.RLIMIT_NPROC,
	"RLIMIT_NOFILE":  unix.RLIMIT_NOFILE,
	"RLIMIT_MEMLOCK": unix.RLIMIT_MEMLOCK,
	"RLIMIT_AS":      unix.RLIMIT_AS,
	"RLIMIT_LOCKS":   unix.RLIMIT_LOCKS,
}

// Get returns the current (soft) and maximum (hard) value of the named
// resource limit.
func Get(name string) (cur, max uint64, err error) {
	res, ok := rlimitMap[name]
	if !ok {
		return 0, 0, fmt.Errorf("%s is not a valid rlimit resource", name)
	}

	var rlim unix.Rlimit
	if err := unix.Getrlimit(res, &rlim); err != nil {
		return 0, 0, fmt.Errorf("while getting limit for %s: %w", name, err)
	}

	return rlim.Cur, rlim.Max, nil
}

// Set applies cur and max to the named resource limit for the current
// process.
func Set(name string, cur, max uint64) error {
	res, ok := rlimitMap[name]
	if !ok {
		return fmt.Errorf("%s is not a valid rlimit resource", name)
	}

	rlim := unix.Rlimit{Cur: cur, Max: max}
	if err := unix.Setrlimit(res, &rlim); err != nil {
		return fmt.Errorf("while setting limit for %s: %w", name, err)
	}

	return nil
}
