package main

import (
	"github.com/spf13/cobra"

	"github.com/honeycomb-run/honeycomb/internal/honeylog"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "honeycombd",
	Short: "honeycombd runs commands inside chroot sandboxes with per-launch uid isolation",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to honeycomb.yaml (defaults searched if unset)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "loglevel", "", "numeric log level; overrides the config's log_level and "+honeylog.EnvVar)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stage1Cmd)
}

var logLevelFlag string
