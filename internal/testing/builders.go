package testing

import (
	"fmt"
	"time"

	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/util/naming"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults and an
// in-memory credential store.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			ClusterName: "test-cluster",
			ControlPlane: config.NodeConfig{
				Host:      "203.0.113.10",
				PrivateIP: "10.0.0.10",
			},
			Workers: config.WorkerPoolConfig{
				Min: 1,
				Max: 10,
			},
			CredentialStore: config.CredentialStoreConfig{Type: config.StoreMemory},
		},
	}
}

// WithClusterName sets the cluster name.
func (b *ConfigBuilder) WithClusterName(name string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ClusterName = name
	return nb
}

// WithWorkers configures n workers with generated names and addresses.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Workers.Nodes = make([]config.NodeConfig, 0, n)
	for i := range n {
		nb.cfg.Workers.Nodes = append(nb.cfg.Workers.Nodes, config.NodeConfig{
			Name:      naming.Worker(nb.cfg.ClusterName, i),
			Host:      fmt.Sprintf("203.0.113.%d", 20+i),
			PrivateIP: fmt.Sprintf("10.0.0.%d", 20+i),
		})
	}
	if nb.cfg.Workers.Max < n {
		nb.cfg.Workers.Max = n
	}
	return nb
}

// WithPoolBounds sets the worker pool bounds.
func (b *ConfigBuilder) WithPoolBounds(lower, upper int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Workers.Min = lower
	nb.cfg.Workers.Max = upper
	return nb
}

// WithTokenTTL sets the join token lifetime.
func (b *ConfigBuilder) WithTokenTTL(ttl time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Kubernetes.TokenTTL = ttl
	return nb
}

// WithMaxAttempts caps join attempts.
func (b *ConfigBuilder) WithMaxAttempts(n int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Join.MaxAttempts = n
	return nb
}

// WithUntaint sets whether the control plane taint is removed.
func (b *ConfigBuilder) WithUntaint(untaint bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Kubernetes.UntaintControlPlane = &untaint
	return nb
}

// WithFirewall enables the Hetzner Cloud firewall contract for the given sources.
func (b *ConfigBuilder) WithFirewall(sources ...string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Firewall.WorkerSources = append([]string(nil), sources...)
	nb.cfg.Firewall.HCloud.Enabled = true
	nb.cfg.Firewall.HCloud.Token = "test-token"
	return nb
}

// Build returns the config with defaults applied.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	cfg.ApplyDefaults()
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.Workers.Nodes = append([]config.NodeConfig(nil), b.cfg.Workers.Nodes...)
	cfg.Firewall.WorkerSources = append([]string(nil), b.cfg.Firewall.WorkerSources...)
	if b.cfg.Kubernetes.UntaintControlPlane != nil {
		v := *b.cfg.Kubernetes.UntaintControlPlane
		cfg.Kubernetes.UntaintControlPlane = &v
	}
	return &ConfigBuilder{cfg: cfg}
}
