package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/adreport"
)

func newADCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ad",
		Short: "Report Active Directory account hygiene over LDAP",
		Long: `ad audits user accounts in the configured directory: stale passwords and
logons, lockouts, never-expiring passwords, and membership of privileged
groups. Connection settings live in the [ad] config section; the bind
password may come from ADMINTOOL_AD_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.cfg.ValidateAD(); err != nil {
				return err
			}
			cfg := state.cfg.AD
			if stale, _ := cmd.Flags().GetInt("stale-days"); stale > 0 {
				cfg.StaleDays = stale
			}
			return runTool(cmd, state, adreport.New(cfg))
		},
	}
	cmd.Flags().Int("stale-days", 0, "days without logon or password change before an account is stale (overrides config)")
	return cmd
}
