package config

import "time"

// Config holds the cluster bootstrap configuration.
type Config struct {
	ClusterName string `yaml:"cluster_name"`

	ControlPlane NodeConfig       `yaml:"control_plane"`
	Workers      WorkerPoolConfig `yaml:"workers"`
	SSH          SSHConfig        `yaml:"ssh"`

	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Join       JoinConfig       `yaml:"join"`

	CredentialStore CredentialStoreConfig `yaml:"credential_store"`
	Firewall        FirewallConfig        `yaml:"firewall"`
}

// NodeConfig describes a node reachable by the coordinator.
type NodeConfig struct {
	Name string `yaml:"name"`
	// Host is the address used to reach the node over SSH.
	Host string `yaml:"host"`
	// PrivateIP is the node's address inside the cluster network. For the
	// control plane it is the API server advertise address workers join.
	PrivateIP string `yaml:"private_ip"`
}

// WorkerPoolConfig describes the elastic worker pool.
type WorkerPoolConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
	// Nodes lists workers currently known to the coordinator. The external
	// autoscaler owns the real pool; the list only has to stay within Max.
	Nodes []NodeConfig `yaml:"nodes"`
	// Parallelism limits concurrent joins. Zero joins all nodes at once.
	Parallelism int `yaml:"parallelism"`
}

// SSHConfig holds SSH access settings shared by all nodes.
type SSHConfig struct {
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// KubernetesConfig pins versions and control-plane settings.
type KubernetesConfig struct {
	Version           string        `yaml:"version"`
	PackageVersion    string        `yaml:"package_version"`
	PackageRepository string        `yaml:"package_repository"`
	PackageKeyURL     string        `yaml:"package_key_url"`
	ContainerRuntime  string        `yaml:"container_runtime"`
	PodSubnet         string        `yaml:"pod_subnet"`
	ServiceSubnet     string        `yaml:"service_subnet"`
	APIPort           int           `yaml:"api_port"`
	CNIManifest       string        `yaml:"cni_manifest"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	// UntaintControlPlane allows workloads on the control plane node.
	UntaintControlPlane *bool `yaml:"untaint_control_plane"`
}

// ShouldUntaintControlPlane reports whether the control-plane taint is removed.
// Defaults to true to match the reference deployment.
func (k KubernetesConfig) ShouldUntaintControlPlane() bool {
	return k.UntaintControlPlane == nil || *k.UntaintControlPlane
}

// JoinConfig tunes the worker join loop.
type JoinConfig struct {
	// MaxAttempts caps join attempts. Zero leaves the loop bounded only by the
	// credential's validity window.
	MaxAttempts int `yaml:"max_attempts"`
	// VerifyCA fetches the cluster CA and checks it against the pinned hash
	// before each attempt. Only meaningful when the join runs on the worker
	// itself, where the control plane endpoint is reachable.
	VerifyCA bool `yaml:"verify_ca"`
}

// CredentialStoreConfig selects where the join credential is published.
type CredentialStoreConfig struct {
	Type string   `yaml:"type"`
	S3   S3Config `yaml:"s3"`
}

// S3Config configures the S3-compatible credential store.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`

	// Populated from the environment.
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// FirewallConfig describes the cloud firewall that carries the join contract.
type FirewallConfig struct {
	// WorkerSources are CIDRs workers connect from.
	WorkerSources []string             `yaml:"worker_sources"`
	HCloud        HCloudFirewallConfig `yaml:"hcloud"`
}

// HCloudFirewallConfig enables the Hetzner Cloud firewall check.
type HCloudFirewallConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	// Populated from HCLOUD_TOKEN.
	Token string `yaml:"-"`
}

// APIEndpoint returns the host:port workers join.
func (c *Config) APIEndpoint() string {
	return joinHostPort(c.ControlPlane.PrivateIP, c.Kubernetes.APIPort)
}

// WorkerByName returns the configured worker with the given name.
func (c *Config) WorkerByName(name string) (NodeConfig, bool) {
	for _, n := range c.Workers.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeConfig{}, false
}
