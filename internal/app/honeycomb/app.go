// Package honeycomb wires FrameCodec, SpecDecoder, SandboxBuilder,
// Launcher, ChildTable and Supervisor together into the running
// daemon, matching the data flow the system overview describes:
// FrameCodec -> SpecDecoder -> (SandboxBuilder -> Launcher) ->
// ChildTable <- Supervisor.
package honeycomb

import (
	"fmt"
	"io"

	"github.com/honeycomb-run/honeycomb/internal/config"
	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/honeylog"
	"github.com/honeycomb-run/honeycomb/internal/launcher"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
	"github.com/honeycomb-run/honeycomb/internal/sandbox"
	"github.com/honeycomb-run/honeycomb/internal/supervisor"
)

// App owns the daemon's long-lived state: the shared ChildTable, the
// Launcher that writes to it, and the Supervisor that reaps from it.
type App struct {
	cfg        *config.Config
	table      *supervisor.ChildTable
	launcher   *launcher.Launcher
	supervisor *supervisor.Supervisor
}

// New constructs an App from a loaded Config. The Supervisor's
// onChange callback is wired to log a terminal status transition at
// Verbose level; a richer upstream notification hook can be layered on
// by replacing this callback before Run.
func New(cfg *config.Config) *App {
	table := supervisor.NewChildTable()
	l := launcher.New(table)

	a := &App{cfg: cfg, table: table, launcher: l}
	a.supervisor = supervisor.New(table, a.onChildChanged)
	return a
}

func (a *App) onChildChanged(rec *supervisor.ChildRecord) {
	honeylog.Verbosef("transaction %d: pid %d reached terminal status %d (exit=%d signal=%d)",
		rec.TransactionID, rec.PID, rec.Status, rec.ExitCode, rec.Signal)
}

// Run starts the Supervisor's reap loop. It blocks until a terminating
// signal is received.
func (a *App) Run() {
	a.supervisor.Run()
}

// Stop requests the Supervisor's loop exit at its next wakeup.
func (a *App) Stop() {
	a.supervisor.Stop()
}

// Kill terminates the child running as pid, using its registered kill
// override command if one was set at launch, else SIGKILL.
func (a *App) Kill(pid int) error {
	return a.supervisor.Kill(pid)
}

// Serve reads and handles frames from r, writing responses to w, until
// r reaches EOF or a framing error occurs. This is the loop a caller
// wires the two pre-opened request/response fds into.
func (a *App) Serve(r io.Reader, w io.Writer) error {
	codec := protocol.NewFrameCodec(r, w)
	for {
		frame, err := codec.ReadFrame()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		resp := a.handleFrame(frame)
		if err := codec.WriteFrame(resp); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}
}

func (a *App) handleFrame(frame []byte) []byte {
	spec, err := protocol.DecodeSpec(frame)
	if err != nil {
		return responseFor(err)
	}

	if spec.Options.After != "" {
		defer func() {
			if err := launcher.RunHook("after", spec.Options.After); err != nil {
				honeylog.Warningf("after hook for transaction %d: %v", spec.TransactionID, err)
			}
		}()
	}

	plan, err := sandbox.Build(a.cfg, spec)
	if err != nil {
		return responseFor(err)
	}

	pid, err := a.launcher.Launch(plan, spec)
	if err != nil {
		return responseFor(err)
	}

	return protocol.EncodeOK(pid)
}

// HandleConn services one request/response exchange over rw, the
// two-fd wire protocol FrameCodec abstracts. It decodes exactly one
// CommandSpec, builds its sandbox, launches it, and writes the
// encoded response -- {ok, pid} or {error, reason[, detail]}.
func (a *App) HandleConn(rw io.ReadWriter) error {
	codec := protocol.NewFrameCodec(rw, rw)

	frame, err := codec.ReadFrame()
	if err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}

	return codec.WriteFrame(a.handleFrame(frame))
}

func responseFor(err error) []byte {
	return protocol.EncodeError(herrors.KindOf(err).String(), err.Error())
}
