package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/imamik/kubejoin/internal/util/naming"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and environment secrets,
// and validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.LoadSecretsFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	k := &c.Kubernetes
	if k.Version == "" {
		k.Version = DefaultKubernetesVersion
	}
	if k.PackageVersion == "" {
		k.PackageVersion = DefaultPackageVersion
	}
	if k.PackageRepository == "" {
		k.PackageRepository = DefaultPackageRepository
	}
	if k.PackageKeyURL == "" {
		k.PackageKeyURL = DefaultPackageKeyURL
	}
	if k.ContainerRuntime == "" {
		k.ContainerRuntime = DefaultContainerRuntime
	}
	if k.PodSubnet == "" {
		k.PodSubnet = DefaultPodSubnet
	}
	if k.ServiceSubnet == "" {
		k.ServiceSubnet = DefaultServiceSubnet
	}
	if k.APIPort == 0 {
		k.APIPort = KubeAPIPort
	}
	if k.CNIManifest == "" {
		k.CNIManifest = DefaultCNIManifest
	}
	if k.TokenTTL == 0 {
		k.TokenTTL = DefaultTokenTTL
	}

	if c.ControlPlane.Name == "" {
		c.ControlPlane.Name = naming.ControlPlane(c.ClusterName)
	}
	if c.Workers.Min == 0 && c.Workers.Max == 0 {
		c.Workers.Min = DefaultWorkerMin
		c.Workers.Max = DefaultWorkerMax
	}
	for i := range c.Workers.Nodes {
		if c.Workers.Nodes[i].Name == "" {
			c.Workers.Nodes[i].Name = naming.Worker(c.ClusterName, i)
		}
	}

	if c.SSH.User == "" {
		c.SSH.User = DefaultSSHUser
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = SSHPort
	}

	if c.CredentialStore.Type == "" {
		c.CredentialStore.Type = StoreS3
	}
	if c.Firewall.HCloud.Name == "" {
		c.Firewall.HCloud.Name = naming.Firewall(c.ClusterName)
	}
}

// LoadSecretsFromEnv populates secret fields from the environment.
func (c *Config) LoadSecretsFromEnv() {
	if v := os.Getenv(EnvS3AccessKey); v != "" {
		c.CredentialStore.S3.AccessKey = v
	}
	if v := os.Getenv(EnvS3SecretKey); v != "" {
		c.CredentialStore.S3.SecretKey = v
	}
	if v := os.Getenv(EnvHCloudToken); v != "" {
		c.Firewall.HCloud.Token = v
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
