package bootstrap

import (
	"context"
	"time"

	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/provisioning"
	"github.com/imamik/kubejoin/internal/util/naming"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CAVerifier checks that the API server at endpoint presents the pinned CA.
// A mismatch must wrap kubeadm.ErrCACertHashMismatch; any other error is
// treated as the control plane not being reachable yet.
type CAVerifier interface {
	VerifyCA(ctx context.Context, endpoint, pinned string) error
}

// Firewall opens and validates the join contract on the cloud firewall.
type Firewall interface {
	EnsureFirewall(ctx context.Context, name, selector string, sources []string, labels map[string]string) (*hcloud.Firewall, error)
	ValidateContract(ctx context.Context, name string) ([]kubeadm.PortRange, error)
}

// Coordinator drives control plane initialization, credential publication and
// worker joins for one cluster.
type Coordinator struct {
	cfg      *config.Config
	store    credstore.Store
	observer provisioning.Observer
	timeouts *config.Timeouts
	registry *Registry
	metrics  *Metrics
	verifier CAVerifier
	firewall Firewall
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver sets the observer receiving logs and events.
func WithObserver(o provisioning.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithTimeouts overrides the environment-derived timeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(c *Coordinator) { c.timeouts = t }
}

// WithMetrics records coordinator metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCAVerifier checks the pinned CA in-process before each join attempt.
func WithCAVerifier(v CAVerifier) Option {
	return func(c *Coordinator) { c.verifier = v }
}

// WithFirewall makes Bootstrap open and validate the cloud firewall contract first.
func WithFirewall(f Firewall) Option {
	return func(c *Coordinator) { c.firewall = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator publishing through store.
func NewCoordinator(cfg *config.Config, store credstore.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		store:    store,
		registry: NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.observer == nil {
		c.observer = provisioning.NewConsoleObserver()
	}
	c.observer = c.observer.WithFields(map[string]string{"cluster": cfg.ClusterName})
	if c.timeouts == nil {
		c.timeouts = config.LoadTimeouts()
	}
	c.registry.now = c.now
	c.registry.onTransition = func(role Role, from, to NodeState) {
		c.metrics.recordTransition(role, from, to)
	}
	return c
}

// CredentialKey is the store key of the cluster's join credential.
func (c *Coordinator) CredentialKey() string {
	return naming.CredentialKey(c.cfg.ClusterName)
}

// CredentialRef is the address workers fetch the credential from.
func (c *Coordinator) CredentialRef() string {
	return c.store.Ref(c.CredentialKey())
}

// Status returns a snapshot of every node the coordinator has seen.
func (c *Coordinator) Status() []NodeStatus {
	return c.registry.Snapshot()
}

// NodeStatus returns the status of one node.
func (c *Coordinator) NodeStatus(node *ClusterNode) (NodeStatus, bool) {
	return c.registry.Get(node.Key())
}

func (c *Coordinator) nodeObserver(node *ClusterNode) provisioning.Observer {
	return c.observer.WithFields(map[string]string{"node": node.Name})
}
