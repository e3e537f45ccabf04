package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/diskmon"
)

func newDiskCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Report volume usage against warning and critical thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg.Disk
			if warn, _ := cmd.Flags().GetFloat64("warn"); warn > 0 {
				cfg.WarnPercent = warn
			}
			if crit, _ := cmd.Flags().GetFloat64("crit"); crit > 0 {
				cfg.CritPercent = crit
			}
			return runTool(cmd, state, diskmon.New(cfg))
		},
	}
	cmd.Flags().Float64("warn", 0, "warning threshold percent (overrides config)")
	cmd.Flags().Float64("crit", 0, "critical threshold percent (overrides config)")
	return cmd
}
