// Package launcher implements the Launcher component together with the
// single forked child that performs the work the spec splits across
// SandboxBuilder §4.5 and Launcher §4.6. The source forks twice -- once
// to stage and chroot, once to exec -- and its build_environment child
// always exits 0 without ever hosting the real command; chroot can only
// affect a later exec in the *same* process, so this reimplementation
// resolves that open question by folding both forks into one: a single
// re-exec of the daemon binary under a hidden subcommand that drops
// privilege, stages, chroots, drops again and finally execve's the
// target, all before the Go runtime accumulates more than the one
// thread this needs.
package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/honeylog"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
	"github.com/honeycomb-run/honeycomb/internal/sandbox/paths"
	"github.com/honeycomb-run/honeycomb/internal/sandbox/priv"
	"github.com/honeycomb-run/honeycomb/internal/sandbox/stage"
	"github.com/honeycomb-run/honeycomb/pkg/rlimit"
)

// Stage1EnvVar carries a JSON-encoded Stage1Config from the Launcher to
// the re-exec'd child; it never reaches the final command's own
// environment, which is set explicitly at the execve call below.
const Stage1EnvVar = "HONEYCOMB_STAGE1_CONFIG"

// Stage1Config is everything the forked child needs to stage, confine
// and exec one command. It is the Go-native analogue of the fields
// Honeycomb carried as instance state (m_cmd, m_cd, m_user, ...) in the
// source, flattened for a process boundary instead of a field access.
type Stage1Config struct {
	ConfinementDir string
	UID            int
	GID            int
	Command        string
	IsScript       bool
	Env            []string
	Nice           *int
	NoFiles        *uint64
	Stdout         protocol.Stdio
	Stderr         protocol.Stdio
}

// RunStage1 performs the privileged confinement sequence and, on
// success, replaces the current process image via execve -- it never
// returns in that case. Any failure is fatal to this process, matching
// the spec's "errors within a forked child are terminal" propagation
// rule.
func RunStage1(cfg Stage1Config) {
	if err := runStage1(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "honeycombd stage1: %v\n", err)
		os.Exit(1)
	}
}

func runStage1(cfg Stage1Config) error {
	gate := priv.New()

	if err := gate.TempDrop(cfg.UID, cfg.GID); err != nil {
		return err
	}

	fs := afero.NewOsFs()
	st := stage.New(fs, cfg.ConfinementDir)

	shellPath := shellInterpreter()
	if err := st.Stage(shellPath); err != nil {
		return err
	}

	execTarget := cfg.Command
	var argv []string
	var stagedBinary string
	if cfg.IsScript {
		// cfg.Command already names the script's path inside the
		// confinement directory (the Launcher wrote it there directly);
		// its own shebang selects the interpreter, so no shell wrapper
		// is needed.
		argv = []string{cfg.Command}
	} else {
		resolved, err := paths.Resolve(firstToken(cfg.Command))
		if err != nil {
			return err
		}
		if err := st.Stage(resolved); err != nil {
			return err
		}
		stagedBinary = resolved
		execTarget = shellPath
		argv = []string{shellPath, "-c", cfg.Command}

		stagedPath := filepath.Join(cfg.ConfinementDir, stagedBinary)
		if err := os.Chmod(stagedPath, 0o700); err != nil {
			honeylog.Debugf("chmod staged binary %s: %v", stagedPath, err)
		}
	}

	if err := gate.Restore(); err != nil {
		return err
	}

	if err := closeDirectoryFDs(); err != nil {
		return err
	}

	if err := pivotChroot(cfg.ConfinementDir); err != nil {
		return err
	}

	if err := gate.TempDrop(cfg.UID, cfg.GID); err != nil {
		return err
	}
	if cfg.NoFiles != nil {
		if err := rlimit.Set("RLIMIT_NOFILE", *cfg.NoFiles, *cfg.NoFiles); err != nil {
			return herrors.FsError("runStage1", fmt.Errorf("setting nofiles limit: %w", err))
		}
	}
	if err := gate.Restore(); err != nil {
		return err
	}

	if err := gate.PermDrop(cfg.UID, cfg.GID); err != nil {
		return err
	}

	if err := redirectStdio(cfg.Stdout, cfg.Stderr); err != nil {
		return err
	}

	// Undo whatever signal mask the supervisor's sigwait loop installed;
	// execve resets caught handlers to default but leaves the blocked
	// set untouched.
	if err := unix.PthreadSigmask(unix.SIG_SETMASK, &unix.Sigset_t{}, nil); err != nil {
		return herrors.ExecFailed("runStage1", fmt.Errorf("resetting signal mask: %w", err))
	}

	if err := syscall.Exec(execTarget, argv, cfg.Env); err != nil {
		return herrors.ExecFailed("runStage1", err)
	}
	return nil
}

func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}

func shellInterpreter() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// pivotChroot uses the chdir-then-chroot(".") idiom: chdir to the new
// root before chrooting avoids a race where an attacker could swap the
// target directory between the two calls.
func pivotChroot(dir string) error {
	if err := unix.Chdir(dir); err != nil {
		return herrors.FsError("pivotChroot", fmt.Errorf("chdir %s: %w", dir, err))
	}
	if err := unix.Chroot("."); err != nil {
		return herrors.FsError("pivotChroot", fmt.Errorf("chroot %s: %w", dir, err))
	}
	return nil
}

// closeDirectoryFDs closes every open fd at or above 2 that refers to a
// directory, preventing it from being used to escape the chroot, per
// spec §4.5. Stdio (0,1,2) is never a directory fd in practice, so
// starting the scan at 2 rather than 3 only costs one extra Fstat and
// never actually closes stderr; §5's "preserve 0/1/2" still holds.
func closeDirectoryFDs() error {
	max := fdMaxForClose()
	for fd := 2; fd < max; fd++ {
		var stat unix.Stat_t
		if err := unix.Fstat(fd, &stat); err != nil {
			continue
		}
		if stat.Mode&unix.S_IFMT == unix.S_IFDIR {
			unix.Close(fd)
		}
	}
	return nil
}
