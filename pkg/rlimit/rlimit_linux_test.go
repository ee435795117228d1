package rlimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	fileCur, fileMax, err := Get("RLIMIT_NOFILE")
	require.NoError(t, err)

	require.NoError(t, Set("RLIMIT_NOFILE", fileCur, fileMax))

	// raising the hard limit requires a privilege this test process does
	// not have; Set must report the failure rather than silently no-op.
	if err := Set("RLIMIT_NOFILE", fileCur, fileMax+1); err == nil {
		t.Skip("test process has permission to raise RLIMIT_NOFILE's hard limit; cannot exercise the failure path")
	}
}

func TestGetUnknownResource(t *testing.T) {
	_, _, err := Get("RLIMIT_FAKE")
	require.Error(t, err)
}

func TestSetUnknownResource(t *testing.T) {
	err := Set("RLIMIT_FAKE", 0, 0)
	require.Error(t, err)
}
