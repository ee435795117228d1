package launcher

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
)

// RunHook executes a before/after hook command synchronously via the
// shell, matching the spec's "hook is execve'd synchronously in a new
// child; the parent waitpids with no options" contract. stderr is
// captured so a non-zero exit can carry it back in the response.
func RunHook(which, command string) error {
	cmd := exec.Command(shellInterpreter(), "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return herrors.HookFailed(fmt.Sprintf("hook(%s)", which), fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}
