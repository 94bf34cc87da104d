package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Join returns the command joining one configured worker over SSH.
//
// Required flags:
//
//	--node: Name of the worker in the configuration
func Join() *cobra.Command {
	var (
		configPath  string
		nodeName    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join one configured worker over SSH",
		Long: `Join one configured worker to the control plane over SSH.

The worker waits for the join credential to be published, installs its
dependencies and retries kubeadm join with backoff until it succeeds,
the credential expires or the join is rejected. Running it on a worker
that already joined does nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Join(cmd.Context(), configPath, nodeName, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")
	cmd.Flags().StringVar(&nodeName, "node", "", "Name of the worker to join")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}
