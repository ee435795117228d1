package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/honeycomb-run/honeycomb/internal/launcher"
)

// stage1Cmd is not documented in --help: it exists only so Launch can
// re-exec the daemon binary into the single privileged child that
// stages, chroots and execs one command. See launcher.RunStage1.
var stage1Cmd = &cobra.Command{
	Use:    launcher.Stage1Arg,
	Hidden: true,
	RunE:   runStage1Cmd,
}

func runStage1Cmd(cmd *cobra.Command, args []string) error {
	raw := os.Getenv(launcher.Stage1EnvVar)
	if raw == "" {
		return fmt.Errorf("%s is required for %s", launcher.Stage1EnvVar, launcher.Stage1Arg)
	}

	var cfg launcher.Stage1Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("decoding stage1 config: %w", err)
	}

	launcher.RunStage1(cfg)
	// RunStage1 only returns on failure, after already printing and
	// calling os.Exit; this is unreachable in practice.
	return nil
}
