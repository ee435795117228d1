// Package stage implements the FsStager component: materialising a
// binary and its transitive ELF dependency closure into a confinement
// directory. The filesystem is accessed through afero.Fs rather than
// the os package directly -- the same pattern DataDog's
// serverless-init instrumentation uses to swap a MemMapFs in under
// test -- so the copy-and-skip-existing logic here can be exercised
// without touching a real filesystem.
package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/sandbox/elfdeps"
	"github.com/honeycomb-run/honeycomb/internal/sandbox/paths"
)

const copyBufferSize = 4096

// Stager copies a binary and its dependency closure into a confinement
// directory, mirroring each source's absolute path under that root.
type Stager struct {
	fs             afero.Fs
	confinementDir string
	copied         map[string]bool
}

// New returns a Stager that mirrors files under confinementDir using fs.
// Pass afero.NewOsFs() in production and afero.NewMemMapFs() in tests.
func New(fs afero.Fs, confinementDir string) *Stager {
	return &Stager{fs: fs, confinementDir: confinementDir, copied: map[string]bool{}}
}

// Stage resolves binary to an absolute path, walks its ELF dependency
// closure, and copies it and every transitive dependency into the
// confinement directory. A source already copied in this Stager's
// lifetime is skipped without re-walking it, matching the spec's
// idempotent-staging invariant.
func (s *Stager) Stage(binary string) error {
	abs, err := paths.Resolve(binary)
	if err != nil {
		return err
	}
	return s.stageOne(abs)
}

func (s *Stager) stageOne(source string) error {
	if s.copied[source] {
		return nil
	}

	if err := s.copyInto(source); err != nil {
		return err
	}
	s.copied[source] = true

	closure, err := elfdeps.Walk(source)
	if err != nil {
		// A dependency that is not itself an ELF object (rare, but
		// possible for a staged data file referenced via runpath)
		// carries nothing further to stage.
		if herrors.KindOf(err) == herrors.KindNotElf {
			return nil
		}
		return err
	}

	for _, lib := range closure.Libraries {
		libPath, err := locate(lib, closure.SearchPaths)
		if err != nil {
			return err
		}
		if err := s.stageOne(libPath); err != nil {
			return err
		}
	}

	return nil
}

func locate(lib string, searchPaths []string) (string, error) {
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, lib)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", herrors.NotFound("locate", fmt.Errorf("dependency %q not found on %v", lib, searchPaths))
}

// copyInto copies source to {confinementDir}{source}, creating parent
// directories with mode 0750. A destination that already exists on
// disk (left over from a prior launch into the same confinement
// directory) is left untouched and zero bytes are copied.
func (s *Stager) copyInto(source string) error {
	dest := filepath.Join(s.confinementDir, source)

	if _, err := s.fs.Stat(dest); err == nil {
		return nil
	}

	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return herrors.FsError("copyInto", fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err))
	}

	in, err := os.Open(source)
	if err != nil {
		return herrors.FsError("copyInto", fmt.Errorf("open %s: %w", source, err))
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return herrors.FsError("copyInto", fmt.Errorf("stat %s: %w", source, err))
	}

	out, err := s.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return herrors.FsError("copyInto", fmt.Errorf("create %s: %w", dest, err))
	}
	defer out.Close()

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return herrors.FsError("copyInto", fmt.Errorf("copy %s -> %s: %w", source, dest, err))
	}

	return nil
}

// Copied reports every source path staged so far, in no particular
// order.
func (s *Stager) Copied() []string {
	out := make([]string, 0, len(s.copied))
	for src := range s.copied {
		out = append(out, src)
	}
	return out
}
