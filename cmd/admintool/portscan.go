package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/portscan"
)

func newPortScanCmd(state *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portscan <target>",
		Short: "Scan a host, IP range or CIDR for open TCP ports",
		Long: `portscan probes TCP ports on the target with a bounded worker pool.
Targets may be a hostname, an address, a last-octet range such as
192.168.1.10-50, or a CIDR block.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg.PortScan
			if ports, _ := cmd.Flags().GetString("ports"); ports != "" {
				cfg.Ports = ports
			}
			if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
				cfg.Workers = workers
			}
			if timeout, _ := cmd.Flags().GetInt("timeout"); timeout > 0 {
				cfg.TimeoutMS = timeout
			}

			scanner := portscan.New(args[0], cfg.Ports,
				time.Duration(cfg.TimeoutMS)*time.Millisecond, cfg.Workers)
			banner, _ := cmd.Flags().GetBool("banner")
			scanner.GrabBanner = banner || cfg.Banner
			scanner.ShowClosed, _ = cmd.Flags().GetBool("show-closed")
			return runTool(cmd, state, scanner)
		},
	}
	cmd.Flags().String("ports", "", `port spec: "common", "22,80,443" or "8000-8100" (overrides config)`)
	cmd.Flags().Int("workers", 0, "concurrent probes (overrides config)")
	cmd.Flags().Int("timeout", 0, "per-port timeout in milliseconds (overrides config)")
	cmd.Flags().Bool("banner", false, "grab service banners from open ports")
	cmd.Flags().Bool("show-closed", false, "include closed ports in the report")
	return cmd
}
