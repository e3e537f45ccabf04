package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/firewall"
)

func newFirewallCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "firewall <rules-export>",
		Short: "Audit an exported firewall rule set for shadowed, duplicate and risky rules",
		Long: `firewall audits a rule export (.json or .csv) offline: duplicate and
shadowed rules, any-to-any accepts, risky ports open to any source, disabled
rules and missing comments, scored as a compliance percentage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, state, firewall.New(args[0], state.cfg.Firewall))
		},
	}
}
