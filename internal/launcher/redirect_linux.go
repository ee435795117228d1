package launcher

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
)

// redirectStdio applies stdout then stderr redirection via dup2 on fds
// 1 and 2. stderr is applied second so a stderr=stdout cross-redirect
// picks up whatever stdout was just pointed at, matching scenario S5
// (stdout to a file, stderr crossed onto it, both land in the file).
func redirectStdio(stdout, stderr protocol.Stdio) error {
	if err := redirectOne(1, stdout, 2); err != nil {
		return err
	}
	if err := redirectOne(2, stderr, 1); err != nil {
		return err
	}
	return nil
}

func redirectOne(fd int, target protocol.Stdio, crossFD int) error {
	switch {
	case target.Discard:
		devnull, err := unix.Open("/dev/null", unix.O_WRONLY, 0)
		if err != nil {
			return herrors.FsError("redirectOne", fmt.Errorf("open /dev/null: %w", err))
		}
		defer unix.Close(devnull)
		return dup2(devnull, fd)
	case target.ToStdout, target.ToStderr:
		return dup2(crossFD, fd)
	case target.File != "":
		out, err := unix.Open(target.File, unix.O_WRONLY|unix.O_CREAT|unix.O_APPEND, 0o644)
		if err != nil {
			return herrors.FsError("redirectOne", fmt.Errorf("open %s: %w", target.File, err))
		}
		defer unix.Close(out)
		return dup2(out, fd)
	default:
		return nil
	}
}

func dup2(oldfd, newfd int) error {
	if err := unix.Dup2(oldfd, newfd); err != nil {
		return herrors.FsError("dup2", fmt.Errorf("dup2(%d, %d): %w", oldfd, newfd, err))
	}
	return nil
}
