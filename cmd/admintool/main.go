// Package main is the CLI entry point for admintool.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/logging"
	"github.com/infrawisetech/IT-Admin-Toolkit/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// appState carries what every subcommand needs, resolved once in the root
// PersistentPreRunE.
type appState struct {
	cfg  *config.Config
	log  *logrus.Logger
	opts pipeline.Options
}

func main() {
	state := &appState{}

	rootCmd := &cobra.Command{
		Use:   "admintool",
		Short: "IT administration reports: disk, services, ports, firewall, baseline, events, AD, VMware, backups",
		Long: `admintool runs independent infrastructure reports. Every command produces
a styled report.html, a CSV and JSON export, and a plaintext run.log in a
dated output directory, plus a colored console summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "config.toml", "path to config file")
	flags.StringP("output", "o", "", "output directory root (overrides config)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.Bool("open", false, "open the HTML report in a browser")
	flags.Bool("bundle", false, "zip the output directory with a checksum manifest")
	flags.Bool("no-history", false, "skip recording this run in the history database")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")
		open, _ := cmd.Flags().GetBool("open")
		bundle, _ := cmd.Flags().GetBool("bundle")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if output != "" {
			cfg.Output.Dir = output
		}

		state.cfg = cfg
		state.log = logging.New(verbose)
		state.opts = pipeline.Options{
			OutputRoot:  cfg.Output.Dir,
			HistoryDB:   cfg.Output.HistoryDB,
			Version:     version,
			OpenBrowser: open || cfg.Output.OpenBrowser,
			Bundle:      bundle || cfg.Output.Bundle,
			NoHistory:   noHistory,
		}
		return nil
	}

	rootCmd.AddCommand(
		newDiskCmd(state),
		newServicesCmd(state),
		newPortScanCmd(state),
		newFirewallCmd(state),
		newBaselineCmd(state),
		newEventLogCmd(state),
		newADCmd(state),
		newVMCmd(state),
		newBackupCmd(state),
		newHistoryCmd(state),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTool(cmd *cobra.Command, state *appState, tool pipeline.Tool) error {
	return pipeline.Run(cmd.Context(), state.log, state.opts, tool)
}
