package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/baseline"
)

func newBaselineCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Score the local system against a security configuration baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg.Baseline
			if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
				cfg.Profile = profile
			}
			if skip, _ := cmd.Flags().GetString("skip"); skip != "" {
				for _, id := range strings.Split(skip, ",") {
					if id = strings.TrimSpace(id); id != "" {
						cfg.Skip = append(cfg.Skip, id)
					}
				}
			}
			return runTool(cmd, state, baseline.New(cfg))
		},
	}
	cmd.Flags().String("profile", "", "server or workstation (overrides config)")
	cmd.Flags().String("skip", "", "comma-separated check IDs to exclude (accepted risk)")
	return cmd
}
