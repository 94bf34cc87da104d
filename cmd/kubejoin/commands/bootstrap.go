package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Bootstrap returns the command running the whole cluster bootstrap.
//
// Flags:
//
//	--config, -c: Path to cluster configuration YAML file (default: cluster.yaml)
//	--tui: Render progress in an interactive dashboard
//	--metrics-addr: Serve Prometheus metrics on this address while running
func Bootstrap() *cobra.Command {
	var (
		configPath  string
		useTUI      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Initialize the control plane and join all workers",
		Long: `Bootstrap a cluster over SSH.

The sequence is:
  1. Validate the configuration and local prerequisites
  2. Open and validate the join ports on the Hetzner Cloud firewall (if enabled)
  3. Install dependencies and run kubeadm init on the control plane
  4. Publish the join credential to the credential store
  5. Join every configured worker concurrently

A control plane failure stops before any worker is touched. A failing
worker does not stop the others; every node's final state is printed.

Re-running is safe: an initialized control plane reuses its credential
and joined workers are skipped.

Examples:
  # Bootstrap with plain log output
  kubejoin bootstrap -c cluster.yaml

  # Follow progress in the dashboard and expose metrics
  kubejoin bootstrap --tui --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Bootstrap(cmd.Context(), configPath, useTUI, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show an interactive progress dashboard")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
