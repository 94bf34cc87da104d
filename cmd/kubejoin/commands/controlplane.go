package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// ControlPlane returns the command initializing the control plane only.
func ControlPlane() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "control-plane",
		Short: "Initialize the control plane and publish the join credential",
		Long: `Initialize the control plane over SSH and publish the join credential.

No worker is touched. Workers join afterwards with 'kubejoin join' or
from their own user data with 'kubejoin agent join'. When the control
plane is already initialized its valid credential is published again,
or a new one is issued once the old one expired.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ControlPlane(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")

	return cmd
}
