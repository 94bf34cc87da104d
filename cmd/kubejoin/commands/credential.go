package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/kubejoin/cmd/kubejoin/handlers"
)

// Credential returns the command showing the published join credential.
func Credential() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Show the published join credential",
		Long: `Show the metadata of the published join credential: its ID, the
control plane endpoint, the pinned CA hash and its validity window.

The token secret is never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Credential(cmd.Context(), configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: cluster.yaml)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
