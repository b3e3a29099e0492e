package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slotcal/internal/config"
	appLog "slotcal/internal/log"
)

const version = "0.1.0"

// globalFlags holds persistent flag values shared by all subcommands.
type globalFlags struct {
	configPath string
	timezone   string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:           "slotcal",
		Short:         "Check whether two time intervals overlap",
		Long:          "slotcal reports whether a new half-open time interval [start, end) overlaps an existing one. Touching intervals do not overlap.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "Path to config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&gf.timezone, "timezone", "", "IANA timezone for timestamps without offset (overrides config)")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Log level: debug, info, error (overrides config)")

	root.AddCommand(newCheckCmd(&gf), newServeCmd(&gf))
	return root
}

// loadConfig reads the config file (if any) and applies flag overrides.
func loadConfig(gf *globalFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if gf.configPath != "" {
		loaded, err := config.Load(gf.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if gf.timezone != "" {
		cfg.Timezone = gf.timezone
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	cfg.Normalize()
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	appLog.Debug("effective config",
		"config_path", gf.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"time_layout", cfg.TimeLayout,
		"strict", cfg.Strict,
	)
	return cfg, nil
}
