// Package config loads honeycombd's daemon-level settings: the
// confinement root, its mode, the default RLIMIT_NOFILE fallback and the
// log level. It is read with viper from an optional YAML file plus
// HONEYCOMB_-prefixed environment overrides, the way canonical-lxd and
// DataDog-datadog-agent both load daemon config.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// DefaultNoFiles is the built-in default for default_nofiles: the
// RLIMIT_NOFILE value applied to a launched child whose spec does not
// set nofiles. The fd-table scan bound used before the chroot pivot is a
// separate constant, internal/launcher's defaultFDMax.
const DefaultNoFiles = 1024

// Config is honeycombd's resolved configuration.
type Config struct {
	// ConfinementRoot is the directory under which per-launch chroot
	// jails are created. It must be owned by root:root, or the
	// SandboxBuilder fails the launch.
	ConfinementRoot string
	// ConfinementMode is the mode applied to the confinement root and
	// to each per-launch confinement directory.
	ConfinementMode os.FileMode
	// DefaultNoFiles is used when a launch does not specify nofiles.
	DefaultNoFiles uint64
	// LogLevel is honeylog's numeric level (see internal/honeylog).
	LogLevel int
}

// Load reads configuration from path (if non-empty and present),
// environment variables prefixed HONEYCOMB_, and falls back to built-in
// defaults so the daemon runs unconfigured.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("honeycomb")
	v.AutomaticEnv()

	v.SetDefault("confinement_root", "/mnt/honeycomb")
	v.SetDefault("confinement_mode", 0o711)
	v.SetDefault("default_nofiles", DefaultNoFiles)
	v.SetDefault("log_level", 1) // honeylog.InfoLevel

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	return &Config{
		ConfinementRoot: v.GetString("confinement_root"),
		ConfinementMode: os.FileMode(v.GetInt("confinement_mode")),
		DefaultNoFiles:  uint64(v.GetInt64("default_nofiles")),
		LogLevel:        v.GetInt("log_level"),
	}, nil
}
