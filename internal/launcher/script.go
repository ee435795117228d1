package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
)

// writeScript materializes a "#!"-prefixed command body as a uniquely
// named file under {confinementDir}/tmp, mode 0700 and owned by uid/gid
// -- the identity stage1 permanently drops to before exec'ing it -- and
// returns the path the staged process will see once chrooted (i.e.
// relative to the confinement directory's eventual "/"). Grounded on
// the spec's script handling paragraph in §4.6, which describes a
// mktemp-style unique name plus a chown to the launch uid so that
// identity can actually open and execute it; google/uuid is the
// idiomatic Go substitute for mktemp's random suffix.
func writeScript(confinementDir string, uid, gid int, body string) (jailPath, hostPath string, err error) {
	tmpDir := filepath.Join(confinementDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		return "", "", herrors.FsError("writeScript", fmt.Errorf("mkdir %s: %w", tmpDir, err))
	}

	name := "honeycomb-" + uuid.NewString()
	hostPath = filepath.Join(tmpDir, name)
	if err := os.WriteFile(hostPath, []byte(body), 0o700); err != nil {
		return "", "", herrors.FsError("writeScript", fmt.Errorf("write %s: %w", hostPath, err))
	}
	if err := os.Chown(hostPath, uid, gid); err != nil {
		return "", "", herrors.FsError("writeScript", fmt.Errorf("chown %s to %d:%d: %w", hostPath, uid, gid, err))
	}

	return filepath.Join("/tmp", name), hostPath, nil
}

// removeScript unlinks the temp file after a bounded busy-wait, giving
// the child up to 200*100us to have opened it for exec. childRunning
// is polled (typically kill(pid, 0)); once it reports the child alive
// (the process exists) or gone (it already exited), the wait ends early.
// Best-effort: failure to remove is logged, not fatal.
func removeScript(hostPath string, childRunning func() (alive bool, exited bool)) {
	for i := 0; i < 200; i++ {
		alive, exited := childRunning()
		if alive || exited {
			break
		}
		time.Sleep(100 * time.Microsecond)
	}
	_ = os.Remove(hostPath)
}
