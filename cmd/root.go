package cmd

import (
	"errors"
	"io/fs"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/sandbench/internal/config"
	"github.com/signalnine/sandbench/internal/logging"
)

const defaultConfig = "sandbench.yaml"

var (
	cfgFile      string
	flagLogLevel string
	flagLogFile  string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sandbench",
		Short:        "Sandboxed evaluation engine for optimization algorithms",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfig, "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

// loadConfig reads --config. A missing default file means built-in
// defaults; a missing file the user named is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if f := cmd.Flag("config"); f == nil || !f.Changed {
			return config.Default(), nil
		}
	}
	return nil, err
}

// newLogger builds the CLI logger. Flags win over the config file.
func newLogger(cfg *config.Config) (*log.Logger, func() error, error) {
	level, file := cfg.Log.Level, cfg.Log.File
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagLogFile != "" {
		file = flagLogFile
	}
	return logging.New(level, file)
}

// setup is loadConfig plus newLogger, which every engine command needs.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}
