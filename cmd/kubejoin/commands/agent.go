package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Agent returns the parent command for operations run on the node itself.
func Agent() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run bootstrap steps on the current host",
	}
	cmd.AddCommand(agentJoin())
	return cmd
}

func agentJoin() *cobra.Command {
	var (
		configPath  string
		nodeName    string
		privateIP   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join this host as a worker",
		Long: `Join the current host as a worker.

Meant to run from the worker's user data. It may start before the
control plane exists: it waits for the join credential, verifies the
cluster CA against the pinned hash and retries until the control plane
accepts the join or the credential expires.

Examples:
  # cloud-init runcmd
  kubejoin agent join -c /etc/kubejoin/cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.AgentJoin(cmd.Context(), configPath, nodeName, privateIP, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")
	cmd.Flags().StringVar(&nodeName, "name", "", "Node name (default: hostname)")
	cmd.Flags().StringVar(&privateIP, "private-ip", "", "Address of this host inside the cluster network")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
