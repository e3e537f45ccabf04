package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/history"
)

func newHistoryCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [tool]",
		Short: "List recent runs recorded in the history database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := ""
			if len(args) == 1 {
				tool = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := history.Open(state.opts.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(tool, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"When", "Tool", "Host", "Score", "OK", "Warn", "Crit", "Report"})
			table.SetBorder(false)
			for _, r := range runs {
				table.Append([]string{
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.Tool, r.Hostname,
					fmt.Sprintf("%.1f", r.Score),
					strconv.Itoa(r.OK), strconv.Itoa(r.Warning), strconv.Itoa(r.Critical),
					r.ReportDir,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum runs to list")
	return cmd
}
