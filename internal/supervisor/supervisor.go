package supervisor

import (
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/honeycomb-run/honeycomb/internal/honeylog"
)

// wakeInterval stands in for the spec's SIGALRM armed via setitimer at
// 20ms: rather than deliver a real signal, the loop selects on a ticker
// alongside the signal channel, guaranteeing the same periodic wakeup
// without the portability cost of itimers.
const wakeInterval = 20 * time.Millisecond

// killGraceDefault is the soft deadline before an issued kill escalates
// to SIGTERM, matching the spec's +5s default.
const killGraceDefault = 5 * time.Second

// ChangeNotifier is invoked exactly once per child as it moves to a
// terminal state, the Go analogue of the source's child_changed_status
// callback.
type ChangeNotifier func(rec *ChildRecord)

// Supervisor is the single-threaded reap loop. All of its state is
// owned by the loop goroutine except the atomic flags signal handlers
// would otherwise touch directly in the source; here those flags are
// standard os/signal channel delivery instead; see the teacher's
// MonitorContainer, whose goroutine-fed channel this loop is a
// generalization of from one tracked pid to a whole ChildTable.
type Supervisor struct {
	table      *ChildTable
	onChange   ChangeNotifier
	terminated atomic.Bool
}

// New returns a Supervisor that reaps from table and calls onChange
// once per child reaching a terminal state.
func New(table *ChildTable, onChange ChangeNotifier) *Supervisor {
	return &Supervisor{table: table, onChange: onChange}
}

// Run blocks, draining SIGCHLD and reaping children, until a
// terminating signal arrives or ctx-equivalent Stop is called. It
// returns without waiting on children still alive, leaving them to the
// init reaper, matching the spec's terminated-signal contract.
func (s *Supervisor) Run() {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, syscall.SIGCHLD, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)
	defer signal.Stop(sigs)

	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()

	for !s.terminated.Load() {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGCHLD:
				s.checkChildren()
			default:
				honeylog.Infof("received %s, terminating supervisor loop", sig)
				s.terminated.Store(true)
			}
		case <-ticker.C:
			s.checkChildren()
		}
	}
}

// Stop requests the loop exit at its next wakeup.
func (s *Supervisor) Stop() {
	s.terminated.Store(true)
}

// checkChildren implements the spec's check_children: reap every pid
// ready via WNOHANG, then walk what remains for kill escalation.
func (s *Supervisor) checkChildren() {
	for {
		var status syscall.WaitStatus
		wpid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if err != nil || wpid <= 0 {
			break
		}

		var rec *ChildRecord
		var ok bool
		switch {
		case status.Exited():
			rec, ok = s.table.MoveToExited(wpid, StatusExited, status.ExitStatus(), 0)
		case status.Signaled():
			rec, ok = s.table.MoveToExited(wpid, StatusSignaled, 0, int(status.Signal()))
		default:
			continue
		}
		if ok && s.onChange != nil {
			s.onChange(rec)
		}
	}

	now := time.Now()
	for _, rec := range s.table.Running() {
		if err := syscall.Kill(rec.PID, 0); err != nil {
			// ESRCH: the process is gone without our having reaped a
			// SIGCHLD for it (e.g. it was reparented away). Record it
			// as vanished so the caller is still notified exactly once.
			moved, ok := s.table.MoveToExited(rec.PID, StatusVanished, 0, 0)
			if ok && s.onChange != nil {
				s.onChange(moved)
			}
			continue
		}

		if rec.KillPID != 0 && !rec.Deadline.IsZero() && now.After(rec.Deadline) {
			honeylog.Verbosef("kill deadline passed for pid %d, escalating to SIGTERM", rec.PID)
			_ = syscall.Kill(rec.PID, syscall.SIGTERM)
			if err := syscall.Kill(rec.KillPID, 0); err == nil {
				_ = syscall.Kill(rec.KillPID, syscall.SIGKILL)
			}
			rec.Deadline = now.Add(killGraceDefault)
		}
	}
}

// KillProcess sends SIGKILL immediately and waits synchronously,
// matching the spec's kill_process: the one intentionally blocking
// path in an otherwise non-blocking loop. The reaped status is
// recorded into the table as Signaled(SIGKILL) so the record reaches
// its terminal state here rather than being picked up later by
// checkChildren's ESRCH/Vanished fallback.
func (s *Supervisor) KillProcess(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return err
	}

	var status syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &status, 0, nil); err != nil {
		return err
	}

	exitCode, signal := 0, int(syscall.SIGKILL)
	switch {
	case status.Signaled():
		signal = int(status.Signal())
	case status.Exited():
		exitCode, signal = status.ExitStatus(), 0
	}

	rec, ok := s.table.MoveToExited(pid, statusFor(status), exitCode, signal)
	if ok && s.onChange != nil {
		s.onChange(rec)
	}
	return nil
}

func statusFor(status syscall.WaitStatus) Status {
	if status.Exited() {
		return StatusExited
	}
	return StatusSignaled
}

// RequestKill registers a kill-command pid against rec with a deadline
// killGraceDefault from now, to be escalated by the loop if the target
// is still alive when the deadline passes.
func RequestKill(rec *ChildRecord, killCmdPID int) {
	rec.KillPID = killCmdPID
	rec.Deadline = time.Now().Add(killGraceDefault)
}

// Kill terminates rec's target process. If rec carries a KillCommand
// override, it is spawned via the shell and its pid tracked so the
// loop's checkChildren escalates to SIGTERM/SIGKILL on the configured
// deadline (the "richer path" the spec describes); otherwise KillProcess
// sends SIGKILL immediately and waits synchronously.
func (s *Supervisor) Kill(pid int) error {
	rec, ok := s.table.Get(pid)
	if !ok {
		return s.KillProcess(pid)
	}

	if rec.KillCommand == "" {
		return s.KillProcess(pid)
	}

	cmd := exec.Command("/bin/sh", "-c", rec.KillCommand)
	if err := cmd.Start(); err != nil {
		return err
	}
	RequestKill(rec, cmd.Process.Pid)
	return nil
}
