package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

// clusterNamePattern mirrors the DNS label rules used for node names.
var clusterNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidStoreTypes contains the supported credential store backends.
var ValidStoreTypes = map[string]bool{
	StoreS3:     true,
	StoreMemory: true,
}

// Validate checks the configuration for common errors and returns a detailed error if validation fails.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if !clusterNamePattern.MatchString(c.ClusterName) {
		return fmt.Errorf("cluster_name %q must be a lowercase DNS label", c.ClusterName)
	}

	if err := c.validateControlPlane(); err != nil {
		return fmt.Errorf("control plane validation failed: %w", err)
	}
	if err := c.validateWorkers(); err != nil {
		return fmt.Errorf("worker validation failed: %w", err)
	}
	if err := c.validateKubernetes(); err != nil {
		return fmt.Errorf("kubernetes validation failed: %w", err)
	}
	if err := c.validateCredentialStore(); err != nil {
		return fmt.Errorf("credential store validation failed: %w", err)
	}
	if err := c.validateFirewall(); err != nil {
		return fmt.Errorf("firewall validation failed: %w", err)
	}
	return nil
}

func (c *Config) validateControlPlane() error {
	cp := c.ControlPlane
	if cp.Host == "" {
		return fmt.Errorf("control_plane.host is required")
	}
	if cp.PrivateIP == "" {
		return fmt.Errorf("control_plane.private_ip is required")
	}
	if net.ParseIP(cp.PrivateIP) == nil {
		return fmt.Errorf("control_plane.private_ip %q is not an IP address", cp.PrivateIP)
	}
	return nil
}

func (c *Config) validateWorkers() error {
	w := c.Workers
	if w.Min < 0 || w.Max < 0 {
		return fmt.Errorf("min and max must not be negative")
	}
	if w.Min > w.Max {
		return fmt.Errorf("min (%d) must not exceed max (%d)", w.Min, w.Max)
	}
	if len(w.Nodes) > w.Max {
		return fmt.Errorf("%d nodes configured but max is %d", len(w.Nodes), w.Max)
	}
	if w.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}

	seen := map[string]bool{c.ControlPlane.Name: true}
	for i, n := range w.Nodes {
		if n.Host == "" {
			return fmt.Errorf("nodes[%d] (%s): host is required", i, n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

func (c *Config) validateKubernetes() error {
	k := c.Kubernetes
	if _, _, err := net.ParseCIDR(k.PodSubnet); err != nil {
		return fmt.Errorf("invalid pod_subnet %q: %w", k.PodSubnet, err)
	}
	if _, _, err := net.ParseCIDR(k.ServiceSubnet); err != nil {
		return fmt.Errorf("invalid service_subnet %q: %w", k.ServiceSubnet, err)
	}
	if k.APIPort < 1 || k.APIPort > 65535 {
		return fmt.Errorf("api_port %d out of range", k.APIPort)
	}
	// A token that never expires would leave workers retrying forever.
	if k.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

func (c *Config) validateCredentialStore() error {
	s := c.CredentialStore
	if !ValidStoreTypes[s.Type] {
		return fmt.Errorf("invalid type %q: must be one of %v", s.Type, getMapKeys(ValidStoreTypes))
	}
	if s.Type != StoreS3 {
		return nil
	}

	var errs []error
	if s.S3.Endpoint == "" {
		errs = append(errs, errors.New("s3.endpoint is required"))
	}
	if s.S3.Region == "" {
		errs = append(errs, errors.New("s3.region is required"))
	}
	if s.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateFirewall() error {
	for _, cidr := range c.Firewall.WorkerSources {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid worker source %q: %w", cidr, err)
		}
	}
	hc := c.Firewall.HCloud
	if !hc.Enabled {
		return nil
	}
	if hc.Token == "" {
		return fmt.Errorf("hcloud firewall enabled but %s is not set", EnvHCloudToken)
	}
	if len(c.Firewall.WorkerSources) == 0 {
		return fmt.Errorf("hcloud firewall enabled but worker_sources is empty")
	}
	return nil
}

// getMapKeys returns the keys of a map as a slice.
func getMapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
