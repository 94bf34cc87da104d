// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/k8s"
	"github.com/imamik/kubejoin/internal/platform/hcloud"
	"github.com/imamik/kubejoin/internal/platform/ssh"
	"github.com/imamik/kubejoin/internal/provisioning"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultConfigFile = "cluster.yaml"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// loadConfigFile loads, defaults and validates a cluster configuration.
	loadConfigFile = config.Load

	// loadTimeouts reads timeouts from the environment.
	loadTimeouts = config.LoadTimeouts

	// newStore builds the credential store selected by the configuration.
	newStore = credstore.New

	// readPrivateKey reads the SSH private key shared by all nodes.
	readPrivateKey = os.ReadFile

	// newRemoteRunner connects to a node over SSH.
	newRemoteRunner = func(host string, cfg config.SSHConfig, key []byte, t *config.Timeouts) (bootstrap.Runner, error) {
		client, err := ssh.NewClient(&ssh.Config{
			Host:        host,
			Port:        cfg.Port,
			User:        cfg.User,
			PrivateKey:  key,
			DialTimeout: t.SSHDial,
			MaxRetries:  t.SSHMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	// newLocalRunner runs commands on the current host.
	newLocalRunner = func() bootstrap.Runner {
		return ssh.LocalRunner{}
	}

	// newFirewall creates the Hetzner Cloud firewall client.
	newFirewall = func(token string) bootstrap.Firewall {
		return hcloud.NewFirewallClient(token)
	}

	// newCAVerifier creates the verifier checking the cluster CA against the pin.
	newCAVerifier = func() bootstrap.CAVerifier {
		return k8s.NewClusterInfoVerifier()
	}

	// newObserver creates the console observer.
	newObserver = func() provisioning.Observer {
		return provisioning.NewConsoleObserver()
	}
)

// bucketEnsurer is implemented by stores that need their bucket created
// before the first publish.
type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// loadConfig loads the configuration at configPath, falling back to
// cluster.yaml in the working directory.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = defaultConfigFile
	}
	if !fileExists(configPath) {
		return nil, fmt.Errorf("config file %s not found\nRun 'kubejoin init' to create one", configPath)
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadSharedConfig loads the configuration for a command whose credential
// outlives the process, which rules out the in-memory store.
func loadSharedConfig(configPath, command string) (*config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := requireSharedStore(cfg, command); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireSharedStore rejects credential stores that other processes cannot read.
func requireSharedStore(cfg *config.Config, command string) error {
	if cfg.CredentialStore.Type == config.StoreMemory {
		return fmt.Errorf("'kubejoin %s' needs a credential store shared between processes, "+
			"but credential_store.type is %q\nSet credential_store.type to %q, or use 'kubejoin bootstrap' "+
			"to initialize and join in one run", command, config.StoreMemory, config.StoreS3)
	}
	return nil
}

// runPreflight validates the configuration and local prerequisites.
func runPreflight(ctx context.Context, cfg *config.Config, observer provisioning.Observer, requireSSHKey bool) error {
	pCtx := provisioning.NewContext(ctx, cfg, observer)
	return provisioning.RunPhases(pCtx, []provisioning.Phase{
		provisioning.NewPreflightPhase(requireSSHKey),
	})
}

// coordinatorOptions selects the optional collaborators of a coordinator.
type coordinatorOptions struct {
	observer provisioning.Observer
	timeouts *config.Timeouts
	// registry receives the coordinator metrics when set.
	registry prometheus.Registerer
	// verifyCA checks the API server CA against the pin before each join.
	verifyCA bool
	// firewall opens the join contract when the configuration enables it.
	firewall bool
	// publish prepares the store for writing.
	publish bool
}

// newCoordinator builds the store and coordinator for cfg.
func newCoordinator(ctx context.Context, cfg *config.Config, o coordinatorOptions) (*bootstrap.Coordinator, error) {
	store, err := newStore(cfg.CredentialStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	if o.publish {
		if e, ok := store.(bucketEnsurer); ok {
			if err := e.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("failed to prepare credential store: %w", err)
			}
		}
	}

	opts := []bootstrap.Option{
		bootstrap.WithObserver(o.observer),
		bootstrap.WithTimeouts(o.timeouts),
	}
	if o.registry != nil {
		opts = append(opts, bootstrap.WithMetrics(bootstrap.NewMetrics(o.registry, cfg.ClusterName)))
	}
	if o.verifyCA {
		opts = append(opts, bootstrap.WithCAVerifier(newCAVerifier()))
	}
	if o.firewall && cfg.Firewall.HCloud.Enabled {
		opts = append(opts, bootstrap.WithFirewall(newFirewall(cfg.Firewall.HCloud.Token)))
	}
	return bootstrap.NewCoordinator(cfg, store, opts...), nil
}

// sshKey reads the private key configured for all nodes.
func sshKey(cfg *config.Config) ([]byte, error) {
	key, err := readPrivateKey(cfg.SSH.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh private key: %w", err)
	}
	return key, nil
}

// remoteNode describes a configured node reached over SSH.
func remoteNode(cfg *config.Config, nc config.NodeConfig, role bootstrap.Role, key []byte, t *config.Timeouts) (*bootstrap.ClusterNode, error) {
	runner, err := newRemoteRunner(nc.Host, cfg.SSH, key, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh client for %s: %w", nc.Name, err)
	}
	node := &bootstrap.ClusterNode{
		Name:      nc.Name,
		Role:      role,
		PrivateIP: nc.PrivateIP,
		Runner:    runner,
	}
	if role == bootstrap.RoleControlPlane {
		node.PublicIP = nc.Host
	}
	return node, nil
}

// controlPlaneNode describes the configured control plane.
func controlPlaneNode(cfg *config.Config, key []byte, t *config.Timeouts) (*bootstrap.ClusterNode, error) {
	return remoteNode(cfg, cfg.ControlPlane, bootstrap.RoleControlPlane, key, t)
}

// workerNodes describes every configured worker.
func workerNodes(cfg *config.Config, key []byte, t *config.Timeouts) ([]*bootstrap.ClusterNode, error) {
	nodes := make([]*bootstrap.ClusterNode, 0, len(cfg.Workers.Nodes))
	for _, nc := range cfg.Workers.Nodes {
		node, err := remoteNode(cfg, nc, bootstrap.RoleWorker, key, t)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
