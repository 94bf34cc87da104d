package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Init returns the command for interactively creating a cluster configuration.
//
// Flags:
//
//	--output, -o: Path to output file (default "cluster.yaml")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a cluster configuration",
		Long: `Interactively create a cluster configuration file.

The wizard asks about:

  - Cluster name
  - Control plane SSH host and private IP
  - Worker hosts and the pool maximum
  - Where the join credential is published (S3 or in-memory)
  - Join token lifetime

Secrets are never written to the file. Object storage keys are read
from KUBEJOIN_S3_ACCESS_KEY and KUBEJOIN_S3_SECRET_KEY, the Hetzner
Cloud token from HCLOUD_TOKEN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "cluster.yaml", "Output file path")

	return cmd
}
