package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/pprof"
	"github.com/perf-analysis/pkg/telemetry"
	"github.com/perf-analysis/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logger     utils.Logger
	cfg        *config.Config

	// telemetryShutdown tears down the OTel TracerProvider started for
	// this run, if any.
	telemetryShutdown telemetry.ShutdownFunc

	// Pprof flags
	pprofEnabled  bool
	pprofMode     string
	pprofDir      string
	pprofProfiles string

	// Pprof collector
	pprofCollector *pprof.Collector
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "taskrun",
	Short: "Run task-parallel dependency-tracked workloads",
	Long: `taskrun drives the discrete dependency runtime from the command line.

It loads runtime configuration (worker pool size, trace sink, OTel export)
and executes one of the built-in seed workloads against a fresh Runtime,
reporting the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if cfg.Instrument.OTel.Enabled {
			shutdown, err := telemetry.Init(context.Background())
			if err != nil {
				logger.Warn("failed to initialize OpenTelemetry: %v", err)
			} else {
				telemetryShutdown = shutdown
			}
		}

		if pprofEnabled {
			pcfg := pprof.DefaultConfig()
			pcfg.Enabled = true
			pcfg.OutputDir = pprofDir
			switch pprofMode {
			case "file":
				pcfg.Mode = pprof.ModeFile
			case "http":
				pcfg.Mode = pprof.ModeHTTP
			default:
				pcfg.Mode = pprof.ModeFile
			}
			profiles, err := pprof.ParseProfileTypes(pprofProfiles)
			if err != nil {
				return err
			}
			pcfg.Profiles = profiles
			if err := pcfg.Validate(); err != nil {
				return err
			}

			collector, err := pprof.NewCollector(pcfg)
			if err != nil {
				return err
			}
			if err := collector.Start(); err != nil {
				return err
			}
			pprofCollector = collector
			logger.Info("pprof collection started (mode: %s, dir: %s)", pcfg.Mode, pcfg.OutputDir)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if pprofCollector != nil {
			logger.Info("stopping pprof collection...")
			if err := pprofCollector.Stop(); err != nil {
				logger.Warn("failed to stop pprof collector: %v", err)
			}
		}
		if telemetryShutdown != nil {
			if err := telemetryShutdown(context.Background()); err != nil {
				logger.Warn("failed to shut down telemetry: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Enable pprof performance profiling of the runtime itself")
	rootCmd.PersistentFlags().StringVar(&pprofMode, "pprof-mode", "file", "Pprof mode: file (periodic snapshots) or http (on-demand)")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap,goroutine", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")

	binName := BinName()
	rootCmd.Example = `  # Run the fibonacci seed scenario
  ` + binName + ` run fib --n 14

  # Run the reduction scenario with a sql trace sink
  ` + binName + ` run reduction -c ./configs/sql.yaml

  # Run every seed scenario in sequence
  ` + binName + ` run all`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
