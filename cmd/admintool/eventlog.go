package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/eventlog"
)

func newEventLogCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventlog",
		Short: "Analyze event logs: level breakdown, noisy providers and detection rule hits",
		Long: `eventlog collects recent events live (Get-WinEvent on Windows, journalctl
on Linux) or loads an exported .json, .jsonl or .csv file, aggregates them by
level and provider, and runs the built-in Sigma detection rules.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg.EventLog
			if hours, _ := cmd.Flags().GetInt("hours"); hours > 0 {
				cfg.Hours = hours
			}
			if max, _ := cmd.Flags().GetInt("max-events"); max > 0 {
				cfg.MaxEvents = max
			}
			tool := eventlog.New(cfg)
			tool.InputPath, _ = cmd.Flags().GetString("input")
			return runTool(cmd, state, tool)
		},
	}
	cmd.Flags().String("input", "", "analyze an exported event file instead of querying live logs")
	cmd.Flags().Int("hours", 0, "look-back window in hours (overrides config)")
	cmd.Flags().Int("max-events", 0, "event cap per run (overrides config)")
	return cmd
}
