package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/honeycomb-run/honeycomb/internal/app/honeycomb"
	"github.com/honeycomb-run/honeycomb/internal/config"
	"github.com/honeycomb-run/honeycomb/internal/honeylog"
)

var (
	requestFD  int
	responseFD int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the sandboxed process supervisor, reading requests from --request-fd",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&requestFD, "request-fd", 3, "fd to read length-prefixed request frames from")
	serveCmd.Flags().IntVar(&responseFD, "response-fd", 4, "fd to write length-prefixed response frames to")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	honeylog.SetLevel(honeylog.Level(cfg.LogLevel))
	if logLevelFlag != "" {
		n, err := strconv.Atoi(logLevelFlag)
		if err != nil {
			return fmt.Errorf("--loglevel must be numeric (got %q): %w", logLevelFlag, err)
		}
		honeylog.SetLevel(honeylog.Level(n))
	}

	req := os.NewFile(uintptr(requestFD), "honeycomb-request")
	resp := os.NewFile(uintptr(responseFD), "honeycomb-response")
	if req == nil || resp == nil {
		return fmt.Errorf("request-fd %d / response-fd %d are not valid open descriptors", requestFD, responseFD)
	}

	app := honeycomb.New(cfg)
	go app.Run()

	honeylog.Infof("honeycombd serving on fd %d/%d, confinement root %s", requestFD, responseFD, cfg.ConfinementRoot)
	if err := app.Serve(req, resp); err != nil {
		app.Stop()
		return err
	}
	app.Stop()
	return nil
}
