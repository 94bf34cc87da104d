// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the kubejoin CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kubejoin",
		Short:        "Bootstrap a kubeadm control plane and join workers to it",
		SilenceUsage: true,
	}

	// Core commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Bootstrap())
	cmd.AddCommand(ControlPlane())
	cmd.AddCommand(Join())
	cmd.AddCommand(Agent())

	// Inspection and utility commands
	cmd.AddCommand(Credential())
	cmd.AddCommand(Status())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
