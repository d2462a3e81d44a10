package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/sharksmell/internal/config"
	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/logging"
)

// app is the state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sso",
		Short: "Distributed shark smell optimizer",
		Long: `sso minimizes or maximizes benchmark functions with the shark smell
optimization algorithm. The population is split across a group of workers
whose local bests are reduced to a single global best.`,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(
		newRunCmd(a),
		newBenchmarksCmd(),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return apperrors.Wrap(err, "load configuration").WithComponent("cli")
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return apperrors.Wrap(err, "initialize logger").WithComponent("cli")
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}
