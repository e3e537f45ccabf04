package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/backupcheck"
)

func newBackupCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Verify backup job results and restore point freshness",
		Long: `backup queries the configured Veeam server for every job's last result
and flags failed runs, disabled jobs, and jobs without a restore point inside
the RPO window. The API password may come from ADMINTOOL_VEEAM_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.cfg.ValidateVeeam(); err != nil {
				return err
			}
			cfg := state.cfg.Veeam
			if rpo, _ := cmd.Flags().GetInt("rpo-hours"); rpo > 0 {
				cfg.RPOHours = rpo
			}
			return runTool(cmd, state, backupcheck.New(cfg))
		},
	}
	cmd.Flags().Int("rpo-hours", 0, "maximum allowed restore point age in hours (overrides config)")
	return cmd
}
