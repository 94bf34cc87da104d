package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Status returns the command listing the nodes registered with the cluster.
func Status() *cobra.Command {
	var (
		configPath     string
		kubeconfigPath string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the nodes registered with the control plane",
		Long: `List the nodes registered with the control plane and their readiness.

Without --kubeconfig the admin kubeconfig is read from the control plane
over SSH.

Examples:
  kubejoin status
  kubejoin status --kubeconfig ./kubeconfig --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), configPath, kubeconfigPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")
	cmd.Flags().StringVar(&kubeconfigPath, "kubeconfig", "", "Use this kubeconfig instead of reading it from the control plane")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
