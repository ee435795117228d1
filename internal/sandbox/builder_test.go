package sandbox

import (
	"os"
	"os/user"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeycomb-run/honeycomb/internal/config"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
)

func TestBuildHonorsExplicitCdWithoutCreatingIt(t *testing.T) {
	spec := &protocol.CommandSpec{
		Command: "/bin/true",
		Options: protocol.Options{Cd: "/nope", User: "nobody"},
	}
	cfg := &config.Config{ConfinementRoot: t.TempDir(), ConfinementMode: 0o711}

	plan, err := Build(cfg, spec)
	require.NoError(t, err)
	require.Equal(t, "/nope", plan.ConfinementDir)

	_, statErr := os.Stat("/nope")
	require.True(t, os.IsNotExist(statErr), "Build must not create a cd the caller supplied explicitly")
}

func TestBuildResolvesNamedUser(t *testing.T) {
	current, err := user.Current()
	if err != nil {
		t.Skip("no resolvable user in this environment")
	}

	spec := &protocol.CommandSpec{
		Command: "/bin/true",
		Options: protocol.Options{Cd: "/somewhere", User: current.Username},
	}
	cfg := &config.Config{ConfinementRoot: t.TempDir(), ConfinementMode: 0o711}

	plan, err := Build(cfg, spec)
	require.NoError(t, err)
	require.Equal(t, os.Getuid(), plan.UID)
}

func TestBuildRandomUIDExceedsThreshold(t *testing.T) {
	spec := &protocol.CommandSpec{
		Command: "/bin/true",
		Options: protocol.Options{Cd: "/somewhere"},
	}
	cfg := &config.Config{ConfinementRoot: t.TempDir(), ConfinementMode: 0o711}

	for i := 0; i < 50; i++ {
		plan, err := Build(cfg, spec)
		require.NoError(t, err)
		require.Greater(t, plan.UID, minUnprivilegedUID)
	}
}

func TestBuildEnvAppendsUserEnvAfterDefaults(t *testing.T) {
	spec := &protocol.CommandSpec{
		Command: "/bin/true",
		Options: protocol.Options{Cd: "/somewhere", Env: []string{"FOO=bar"}},
	}
	cfg := &config.Config{ConfinementRoot: t.TempDir(), ConfinementMode: 0o711}

	plan, err := Build(cfg, spec)
	require.NoError(t, err)
	require.Equal(t, []string{
		"LD_LIBRARY_PATH=/lib;/usr/lib;/usr/local/lib",
		"HOME=/mnt",
		"FOO=bar",
	}, plan.Env)
}
