package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Monitor services, restart them, and escalate to an agent when restarts fail",
	Long: `watchdog probes each configured service on a fixed interval. A failing
service is restarted a bounded number of times; when that does not help, an
agent is handed the diagnostics and asked to repair it, and the outcome is
reported once per failure episode.

Run "watchdog init" to write an example configuration.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.claude-watchdog/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return config.ExpandHome(configPath)
	}
	return config.DefaultPath()
}

// loadConfig loads and validates the config and initializes logging from it
func loadConfig() (*config.Config, error) {
	path := resolvedConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mustLoadConfig exits 1 on a config error; nothing can be monitored without one
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newBackend(cfg *config.Config) *backend.Dispatcher {
	return backend.New(backend.Config{
		Options: backend.Options{
			ProbeTimeout:       cfg.ProbeTimeout.Std(),
			RestartTimeout:     cfg.RestartTimeout.Std(),
			DiagnosticsTimeout: cfg.DiagnosticsTimeout.Std(),
			LogTailLines:       cfg.LogTailLines,
			LogTailBytes:       cfg.LogTailBytes,
		},
	})
}
