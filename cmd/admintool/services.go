package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/servicecheck"
)

func newServicesCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Check that critical services are running, optionally restarting stopped ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg.Services
			if list, _ := cmd.Flags().GetString("services"); list != "" {
				cfg.Critical = nil
				for _, name := range strings.Split(list, ",") {
					if name = strings.TrimSpace(name); name != "" {
						cfg.Critical = append(cfg.Critical, name)
					}
				}
			}
			tool := servicecheck.New(cfg)
			tool.Restart, _ = cmd.Flags().GetBool("restart")
			return runTool(cmd, state, tool)
		},
	}
	cmd.Flags().String("services", "", "comma-separated service names (overrides config)")
	cmd.Flags().Bool("restart", false, "attempt to restart stopped services (requires allow_restart in config)")
	return cmd
}
