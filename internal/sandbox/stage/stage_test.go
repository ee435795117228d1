package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// writeFakeBinary writes a tiny non-ELF file to stand in for a statically
// linked binary; elfdeps.Walk will reject it as NotElf, which Stage
// must treat as "no further dependencies," not as a failure.
func writeFakeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o755))
	return path
}

func TestStageCopiesSourceIntoConfinementDir(t *testing.T) {
	srcDir := t.TempDir()
	bin := writeFakeBinary(t, srcDir, "tool")

	fs := afero.NewMemMapFs()
	confinement := "/confine"
	s := New(fs, confinement)

	require.NoError(t, s.Stage(bin))

	dest := filepath.Join(confinement, bin)
	exists, err := afero.Exists(fs, dest)
	require.NoError(t, err)
	require.True(t, exists)

	contents, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho hi\n", string(contents))
}

func TestStageIsIdempotent(t *testing.T) {
	srcDir := t.TempDir()
	bin := writeFakeBinary(t, srcDir, "tool")

	fs := afero.NewMemMapFs()
	s := New(fs, "/confine")

	require.NoError(t, s.Stage(bin))
	require.NoError(t, s.Stage(bin))
	require.Len(t, s.Copied(), 1)
}

func TestStageMissingBinaryFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/confine")

	t.Setenv("PATH", t.TempDir())
	err := s.Stage("does-not-exist-anywhere")
	require.Error(t, err)
}
