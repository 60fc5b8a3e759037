package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/fieldops/internal/config"
	"github.com/miradorstack/fieldops/internal/utils"
)

// cliState is filled by the root command before any subcommand runs.
type cliState struct {
	configPath string
	logLevel   string
	renderMode string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:   "fieldops",
		Short: "Fault triage dashboards and repair guidance for network field operations",
		Long: `fieldops loads network fault records and repair procedure documents from a
SQL warehouse or fixture files, derives risk and SLA exposure, and serves the
manager dashboard and field engineer assistant over HTTP or in the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(state.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if state.logLevel != "" {
				cfg.Logging.Level = state.logLevel
			}
			if state.renderMode != "" {
				cfg.Render.Mode = state.renderMode
			}
			state.cfg = cfg
			state.logger = utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON, utils.LogFile{
				Path:       cfg.Logging.File,
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAgeDays: cfg.Logging.MaxAgeDays,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&state.configPath, "config", "c", "", "Path to configuration file (or FIELDOPS_CONFIG)")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "Override the configured log level")
	root.PersistentFlags().StringVar(&state.renderMode, "render", "", "Terminal output: auto, rich or plain")

	root.AddCommand(
		newServeCmd(state),
		newTriageCmd(state),
		newProcedureCmd(state),
		newAskCmd(state),
		newSearchCmd(state),
	)
	return root
}
