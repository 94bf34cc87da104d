package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/kubejoin/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// runWizard runs the interactive configuration wizard.
	runWizard = config.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = config.WriteYAML
)

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := result.ToConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("wizard produced an invalid configuration: %w", err)
	}

	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("kubejoin - kubeadm control plane and worker join")
	fmt.Println("================================================")
	fmt.Println()
	fmt.Println("This wizard creates a cluster configuration for one control plane")
	fmt.Println("and a pool of workers reachable over SSH.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Cluster Summary")
	fmt.Println("---------------")
	fmt.Printf("  Name:             %s\n", cfg.ClusterName)
	fmt.Printf("  Control plane:    %s (%s)\n", cfg.ControlPlane.Host, cfg.APIEndpoint())
	fmt.Printf("  Workers:          %d configured, pool %d-%d\n", len(cfg.Workers.Nodes), cfg.Workers.Min, cfg.Workers.Max)
	fmt.Printf("  Kubernetes:       %s\n", cfg.Kubernetes.Version)
	fmt.Printf("  Credential store: %s\n", cfg.CredentialStore.Type)
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	step := 1
	if cfg.CredentialStore.Type == config.StoreS3 {
		fmt.Printf("  %d. Set the object storage credentials:\n", step)
		fmt.Printf("     export %s=<access-key>\n", config.EnvS3AccessKey)
		fmt.Printf("     export %s=<secret-key>\n", config.EnvS3SecretKey)
		fmt.Println()
		step++
	}
	fmt.Printf("  %d. Review %s and set ssh.private_key_path\n", step, outputPath)
	fmt.Println()
	fmt.Printf("  %d. Bootstrap the cluster:\n", step+1)
	fmt.Printf("     kubejoin bootstrap -c %s\n", outputPath)
	fmt.Println()
}
