package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/honeylog"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
	"github.com/honeycomb-run/honeycomb/internal/sandbox"
	"github.com/honeycomb-run/honeycomb/internal/supervisor"
)

// Stage1Arg is the hidden cobra subcommand name the daemon re-execs
// itself under to run RunStage1.
const Stage1Arg = "__stage1"

// Launcher forks (via re-exec, see stage1.go) and execs one command per
// Launch call, recording the resulting pid into a shared ChildTable.
type Launcher struct {
	table *supervisor.ChildTable
}

// New returns a Launcher that registers every launched child into table.
func New(table *supervisor.ChildTable) *Launcher {
	return &Launcher{table: table}
}

// Launch runs spec's before hook (if any), then forks/execs the main
// command per plan, returning the pid on success. A HookFailed(before)
// error means the main command was never started.
func (l *Launcher) Launch(plan *sandbox.Plan, spec *protocol.CommandSpec) (int, error) {
	if spec.Options.Before != "" {
		if err := RunHook("before", spec.Options.Before); err != nil {
			return 0, err
		}
	}

	cfg := Stage1Config{
		ConfinementDir: plan.ConfinementDir,
		UID:            plan.UID,
		GID:            plan.GID,
		Command:        plan.Command,
		Env:            plan.Env,
		Nice:           spec.Options.Nice,
		NoFiles:        &plan.NoFiles,
		Stdout:         spec.Options.Stdout,
		Stderr:         spec.Options.Stderr,
	}

	var hostScriptPath string
	if strings.HasPrefix(plan.Command, "#!") {
		jailPath, hostPath, err := writeScript(plan.ConfinementDir, plan.UID, plan.GID, plan.Command)
		if err != nil {
			return 0, err
		}
		cfg.Command = jailPath
		cfg.IsScript = true
		hostScriptPath = hostPath
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return 0, herrors.ExecFailed("Launch", fmt.Errorf("encoding stage1 config: %w", err))
	}

	self, err := os.Executable()
	if err != nil {
		return 0, herrors.ExecFailed("Launch", fmt.Errorf("resolving own executable path: %w", err))
	}

	cmd := exec.Command(self, Stage1Arg)
	cmd.Env = []string{Stage1EnvVar + "=" + string(payload)}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, herrors.ExecFailed("Launch", fmt.Errorf("starting stage1: %w", err))
	}
	pid := cmd.Process.Pid

	if spec.Options.Nice != nil {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, *spec.Options.Nice); err != nil {
			honeylog.Warningf("setpriority(%d, %d): %v", pid, *spec.Options.Nice, err)
		}
	}

	l.table.Add(&supervisor.ChildRecord{
		PID:           pid,
		TransactionID: spec.TransactionID,
		Status:        supervisor.StatusRunning,
		KillCommand:   spec.Options.Kill,
	})

	if hostScriptPath != "" {
		go removeScript(hostScriptPath, func() (alive bool, exited bool) {
			err := syscall.Kill(pid, 0)
			if err == nil {
				return true, false
			}
			return false, true
		})
	}

	// cmd.Process is no longer waited on by this Cmd; reaping belongs
	// exclusively to the Supervisor, per the spec's ownership rule.
	_ = cmd.Process.Release()

	return pid, nil
}
