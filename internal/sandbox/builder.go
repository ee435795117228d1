// Package sandbox implements the parent-side part of the SandboxBuilder
// component described by the spec's §4.5: choosing the launch identity,
// preparing the confinement directory and assembling the environment and
// nofiles limit. Staging, privilege transitions, the chroot and rlimits
// are applied in the Launcher's stage1 child (internal/launcher).
// Grounded on honeycomb.cpp's build_environment, generalized from its
// single hard-coded confinement_root into the daemon's configurable
// one.
package sandbox

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/honeycomb-run/honeycomb/internal/config"
	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
)

// minUnprivilegedUID is the spec's invariant that a chosen uid always
// exceeds the system/service range.
const minUnprivilegedUID = 0xFFFF

const maxRandomUIDAttempts = 10

// envDefaults are prepended to every launch's environment, matching the
// spec's compiled-in LD_LIBRARY_PATH/HOME pair.
var envDefaults = []string{
	"LD_LIBRARY_PATH=/lib;/usr/lib;/usr/local/lib",
	"HOME=/mnt",
}

// Plan is the output of Build: everything the Launcher needs to stage,
// chroot into and exec the command, without yet having forked.
type Plan struct {
	ConfinementDir string
	UID            int
	GID            int
	Env            []string
	Command        string
	NoFiles        uint64
}

// Build resolves the unprivileged identity for this launch, ensures the
// confinement directory exists (creating and chowning it when the spec
// did not name one), and assembles the environment the child process
// will exec with. It performs no forking and no privilege drop itself;
// those happen in the single forked child the Launcher owns, since the
// source's two-fork architecture (one to stage, one to exec) cannot
// make chroot take effect on the real command and the spec's open
// question resolves that by unifying them into one child.
func Build(cfg *config.Config, spec *protocol.CommandSpec) (*Plan, error) {
	env := make([]string, 0, len(envDefaults)+len(spec.Options.Env))
	env = append(env, envDefaults...)
	env = append(env, spec.Options.Env...)

	uid, gid, err := chooseIdentity(spec.Options.User)
	if err != nil {
		return nil, err
	}

	confinementDir := spec.Options.Cd
	if confinementDir == "" {
		confinementDir, err = ensureConfinementDir(cfg, uid, gid)
		if err != nil {
			return nil, err
		}
	}

	noFiles := cfg.DefaultNoFiles
	if spec.Options.NoFiles != nil {
		noFiles = *spec.Options.NoFiles
	}

	return &Plan{
		ConfinementDir: confinementDir,
		UID:            uid,
		GID:            gid,
		Env:            env,
		Command:        spec.Command,
		NoFiles:        noFiles,
	}, nil
}

func chooseIdentity(userName string) (uid, gid int, err error) {
	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return 0, 0, herrors.NotFound("chooseIdentity", fmt.Errorf("looking up user %q: %w", userName, err))
		}
		parsedUID, err := strconv.Atoi(u.Uid)
		if err != nil {
			return 0, 0, herrors.BadRequest("chooseIdentity", fmt.Errorf("user %q has non-numeric uid %q", userName, u.Uid))
		}
		parsedGID, err := strconv.Atoi(u.Gid)
		if err != nil {
			return 0, 0, herrors.BadRequest("chooseIdentity", fmt.Errorf("user %q has non-numeric gid %q", userName, u.Gid))
		}
		return parsedUID, parsedGID, nil
	}

	uid, err = randomUID()
	if err != nil {
		return 0, 0, err
	}
	return uid, uid, nil
}

// randomUID reads 4 bytes from crypto/rand (the Go-idiomatic
// equivalent of the source's per-attempt /dev/urandom open) and
// retries, bounded at maxRandomUIDAttempts, until the value exceeds
// minUnprivilegedUID.
func randomUID() (int, error) {
	var buf [4]byte
	for attempt := 0; attempt < maxRandomUIDAttempts; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, herrors.FsError("randomUID", fmt.Errorf("reading random bytes: %w", err))
		}
		candidate := int(binary.LittleEndian.Uint32(buf[:]) & 0x7FFFFFFF)
		if candidate > minUnprivilegedUID {
			return candidate, nil
		}
	}
	return 0, herrors.FsError("randomUID", fmt.Errorf("no candidate uid exceeded %#x in %d attempts", minUnprivilegedUID, maxRandomUIDAttempts))
}

func ensureConfinementDir(cfg *config.Config, uid, gid int) (string, error) {
	root := cfg.ConfinementRoot

	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.Mkdir(root, cfg.ConfinementMode); err != nil {
			return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("creating confinement root %s: %w", root, err))
		}
	case err != nil:
		return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("stat confinement root %s: %w", root, err))
	default:
		if !info.IsDir() {
			return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("confinement root %s is not a directory", root))
		}
		if !ownedByRoot(info) {
			return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("confinement root %s is not owned by root (0:0)", root))
		}
	}

	dir := filepath.Join(root, strconv.Itoa(uid))
	if err := os.Mkdir(dir, cfg.ConfinementMode); err != nil && !os.IsExist(err) {
		return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("creating confinement dir %s: %w", dir, err))
	}
	if err := os.Chown(dir, uid, gid); err != nil {
		return "", herrors.FsError("ensureConfinementDir", fmt.Errorf("chown %s to %d:%d: %w", dir, uid, gid, err))
	}

	return dir, nil
}
