package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

// WizardResult holds the answers collected by RunWizard.
type WizardResult struct {
	ClusterName      string
	ControlPlaneHost string
	PrivateIP        string
	WorkerHosts      string
	MaxWorkers       int
	StoreType        string
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	TokenTTLHours    int
}

// RunWizard asks for the minimum needed to bootstrap a cluster.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		MaxWorkers:    DefaultWorkerMax,
		StoreType:     StoreS3,
		S3Region:      "us-east-1",
		TokenTTLHours: int(DefaultTokenTTL / time.Hour),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("Used as prefix for node names (DNS-safe, lowercase)").
				Placeholder("my-cluster").
				Value(&result.ClusterName).
				Validate(validateClusterName),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Control plane SSH address").
				Description("Host or IP the coordinator connects to").
				Value(&result.ControlPlaneHost).
				Validate(validateRequired("control plane address")),
			huh.NewInput().
				Title("Control plane private IP").
				Description("API server advertise address workers join").
				Value(&result.PrivateIP).
				Validate(validateIP),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Worker SSH addresses (optional)").
				Description("Comma separated. Leave empty when workers join themselves.").
				Value(&result.WorkerHosts),
			huh.NewSelect[int]().
				Title("Worker pool maximum").
				Options(
					huh.NewOption("3 workers", 3),
					huh.NewOption("5 workers", 5),
					huh.NewOption("10 workers", 10),
					huh.NewOption("25 workers", 25),
				).
				Value(&result.MaxWorkers),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Credential store").
				Description("Where workers fetch the join credential").
				Options(
					huh.NewOption("S3-compatible object storage", StoreS3),
					huh.NewOption("In memory (single process only)", StoreMemory),
				).
				Value(&result.StoreType),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("S3 endpoint").
				Placeholder("https://fsn1.your-objectstorage.com").
				Value(&result.S3Endpoint).
				Validate(validateRequired("endpoint")),
			huh.NewInput().
				Title("S3 region").
				Value(&result.S3Region),
			huh.NewInput().
				Title("S3 bucket").
				Value(&result.S3Bucket).
				Validate(validateRequired("bucket")),
		).WithHideFunc(func() bool {
			return result.StoreType != StoreS3
		}),

		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Join token lifetime").
				Description("Workers retry until the token expires").
				Options(
					huh.NewOption("1 hour", 1),
					huh.NewOption("24 hours", 24),
					huh.NewOption("72 hours", 72),
				).
				Value(&result.TokenTTLHours),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// ToConfig converts the wizard answers into a defaulted configuration.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		ClusterName: strings.ToLower(strings.TrimSpace(r.ClusterName)),
		ControlPlane: NodeConfig{
			Host:      strings.TrimSpace(r.ControlPlaneHost),
			PrivateIP: strings.TrimSpace(r.PrivateIP),
		},
		Workers: WorkerPoolConfig{
			Min: DefaultWorkerMin,
			Max: r.MaxWorkers,
		},
		Kubernetes: KubernetesConfig{
			TokenTTL: time.Duration(r.TokenTTLHours) * time.Hour,
		},
		CredentialStore: CredentialStoreConfig{Type: r.StoreType},
	}

	for _, host := range strings.Split(r.WorkerHosts, ",") {
		if host = strings.TrimSpace(host); host != "" {
			cfg.Workers.Nodes = append(cfg.Workers.Nodes, NodeConfig{Host: host})
		}
	}
	if n := len(cfg.Workers.Nodes); n > cfg.Workers.Max {
		cfg.Workers.Max = n
	}

	if r.StoreType == StoreS3 {
		cfg.CredentialStore.S3 = S3Config{
			Endpoint: strings.TrimSpace(r.S3Endpoint),
			Region:   strings.TrimSpace(r.S3Region),
			Bucket:   strings.TrimSpace(r.S3Bucket),
			Prefix:   cfg.ClusterName,
		}
	}

	cfg.ApplyDefaults()
	return cfg
}

// WriteYAML writes cfg to path. Secrets are never written.
func WriteYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# kubejoin cluster configuration\n" +
		"# Secrets are read from " + EnvS3AccessKey + ", " + EnvS3SecretKey + " and " + EnvHCloudToken + ".\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func validateClusterName(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fmt.Errorf("cluster name is required")
	}
	if !clusterNamePattern.MatchString(s) {
		return fmt.Errorf("must be 1-63 lowercase letters, digits or hyphens and start and end alphanumeric")
	}
	return nil
}

func validateIP(s string) error {
	if net.ParseIP(strings.TrimSpace(s)) == nil {
		return fmt.Errorf("%q is not an IP address", s)
	}
	return nil
}

func validateRequired(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
