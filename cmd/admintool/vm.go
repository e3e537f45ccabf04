package main

import (
	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/vsphere"
)

func newVMCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "vCenter reports and bulk deployment",
	}
	cmd.AddCommand(newVMReportCmd(state), newVMDeployCmd(state))
	return cmd
}

func newVMReportCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Report VM resource allocation, power state and tools status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.cfg.ValidateVCenter(); err != nil {
				return err
			}
			return runTool(cmd, state, vsphere.NewReport(state.cfg.VCenter))
		},
	}
}

func newVMDeployCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <plan.csv>",
		Short: "Clone VMs from templates according to a CSV plan",
		Long: `deploy clones one VM per plan row. The CSV header must carry
name,template,datastore,cluster,cpu,memory_mb; a network column is optional.
Each row is attempted independently and failures are reported per VM.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := state.cfg.ValidateVCenter(); err != nil {
				return err
			}
			tool := vsphere.NewDeploy(state.cfg.VCenter)
			tool.PlanPath = args[0]
			tool.DryRun, _ = cmd.Flags().GetBool("dry-run")
			return runTool(cmd, state, tool)
		},
	}
	cmd.Flags().Bool("dry-run", false, "validate the plan and report what would be deployed")
	return cmd
}
