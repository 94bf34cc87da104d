package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/platform/ssh"
	"github.com/imamik/kubejoin/internal/provisioning"
	"github.com/imamik/kubejoin/internal/util/retry"
)

// InitializeControlPlane brings node up as the cluster's control plane and
// returns the join credential it issued. Every failure is fatal and wraps
// ErrControlPlaneInit; nothing is published on failure.
//
// If node was initialized before, the published credential is returned when
// it is still valid. Otherwise a new credential generation is issued from the
// running control plane: the steps after kubeadm init are repeated and a fresh
// token is created. Issuing revokes the previously published credential first.
func (c *Coordinator) InitializeControlPlane(ctx context.Context, node *ClusterNode) (*JoinCredential, error) {
	if err := node.validate(RoleControlPlane); err != nil {
		return nil, retry.Fatal(fmt.Errorf("%w: %w", ErrControlPlaneInit, err))
	}

	start := time.Now()
	_ = c.registry.Transition(node, StateProvisioning)

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ControlPlaneInit)
	defer cancel()

	cred, err := c.initializeControlPlane(ctx, node)
	if err != nil {
		c.registry.Fail(node, err)
		c.metrics.recordControlPlaneInit(resultFatal, time.Since(start))
		return nil, retry.Fatal(fmt.Errorf("%w: %w", ErrControlPlaneInit, err))
	}

	_ = c.registry.Transition(node, StateInitialized)
	c.metrics.recordControlPlaneInit(resultSuccess, time.Since(start))
	c.nodeObserver(node).Printf("[control-plane] %s ready, credential %s expires %s",
		node.Name, cred.ID, cred.ExpiresAt.Format(time.RFC3339))
	return cred, nil
}

func (c *Coordinator) initializeControlPlane(ctx context.Context, node *ClusterNode) (*JoinCredential, error) {
	initialized, err := probe(ctx, node, kubeadm.IsInitializedScript())
	if err != nil {
		return nil, fmt.Errorf("failed to check control plane state: %w", err)
	}

	phases := c.controlPlanePhases(node)
	if initialized {
		cred, err := c.existingCredential(ctx, node)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
		phases = c.issuePhases(node)
	}

	if err := c.revokeCredential(ctx); err != nil {
		return nil, err
	}

	pctx := provisioning.NewContext(ctx, c.cfg, c.nodeObserver(node))
	pctx.Timeouts = c.timeouts
	if err := provisioning.RunPhases(pctx, phases); err != nil {
		return nil, err
	}

	cmd, err := kubeadm.ParseJoinCommand(pctx.State.JoinScript)
	if err != nil {
		return nil, fmt.Errorf("failed to parse join command: %w", err)
	}
	cred := NewJoinCredential(cmd, pctx.State.IssuedAt, c.cfg.Kubernetes.TokenTTL)
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

// existingCredential returns the published credential of an already
// initialized control plane, or nil when none is usable and a new one has to
// be issued.
func (c *Coordinator) existingCredential(ctx context.Context, node *ClusterNode) (*JoinCredential, error) {
	observer := c.nodeObserver(node)
	data, err := c.store.Fetch(ctx, c.CredentialKey())
	if errors.Is(err, credstore.ErrNotPublished) {
		observer.Printf("[control-plane] %s already initialized, no credential published, issuing a new one", node.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read published credential: %w", err)
	}
	cred, err := UnmarshalCredential(data)
	if err != nil {
		observer.Printf("[control-plane] %s already initialized, published credential is unusable (%v), issuing a new one", node.Name, err)
		return nil, nil
	}
	if cred.Expired(c.now()) {
		observer.Printf("[control-plane] %s already initialized, credential %s expired at %s, issuing a new one",
			node.Name, cred.ID, cred.ExpiresAt.Format(time.RFC3339))
		return nil, nil
	}
	observer.Printf("[control-plane] %s already initialized, reusing credential %s", node.Name, cred.ID)
	return cred, nil
}

// PublishCredential stores cred where workers can fetch it and returns the
// reference they use. Readers observe either the previous value or cred,
// never a partial write.
func (c *Coordinator) PublishCredential(ctx context.Context, cred *JoinCredential) (string, error) {
	data, err := MarshalCredential(cred)
	if err != nil {
		return "", err
	}
	if cred.Expired(c.now()) {
		return "", retry.Fatal(fmt.Errorf("%w: %s", ErrCredentialExpired, cred.ID))
	}

	key := c.CredentialKey()
	if err := c.store.Publish(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to publish credential: %w", err)
	}

	ref := c.store.Ref(key)
	provisioning.LogCredentialPublished(c.observer, cred.ID, ref, cred.ExpiresAt)
	c.metrics.recordCredential(cred)
	return ref, nil
}

// AdminKubeconfig reads the admin kubeconfig from an initialized control plane.
func (c *Coordinator) AdminKubeconfig(ctx context.Context, node *ClusterNode) ([]byte, error) {
	if err := node.validate(RoleControlPlane); err != nil {
		return nil, err
	}
	out, err := node.Runner.Execute(ctx, kubeadm.ReadAdminKubeconfigScript())
	if err != nil {
		return nil, fmt.Errorf("failed to read admin kubeconfig from %s: %w", node.Name, err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, fmt.Errorf("admin kubeconfig on %s is empty", node.Name)
	}
	return []byte(out), nil
}

func (c *Coordinator) revokeCredential(ctx context.Context) error {
	key := c.CredentialKey()
	if _, err := c.store.Fetch(ctx, key); errors.Is(err, credstore.ErrNotPublished) {
		return nil
	}
	if err := c.store.Revoke(ctx, key); err != nil {
		return fmt.Errorf("failed to revoke previous credential: %w", err)
	}
	provisioning.LogCredentialRevoked(c.observer, c.store.Ref(key))
	return nil
}

func (c *Coordinator) packages() kubeadm.Packages {
	k := c.cfg.Kubernetes
	return kubeadm.Packages{
		Repository:       k.PackageRepository,
		KeyURL:           k.PackageKeyURL,
		Version:          k.PackageVersion,
		ContainerRuntime: k.ContainerRuntime,
	}
}

func (c *Coordinator) clusterConfig(node *ClusterNode) kubeadm.ClusterConfig {
	k := c.cfg.Kubernetes
	advertise := node.PrivateIP
	if advertise == "" {
		advertise = c.cfg.ControlPlane.PrivateIP
	}
	var sans []string
	if node.PublicIP != "" {
		sans = append(sans, node.PublicIP)
	}
	return kubeadm.ClusterConfig{
		KubernetesVersion: k.Version,
		NodeName:          node.Name,
		AdvertiseAddress:  advertise,
		BindPort:          k.APIPort,
		PodSubnet:         k.PodSubnet,
		ServiceSubnet:     k.ServiceSubnet,
		CertSANs:          sans,
	}
}

// controlPlanePhases is the ordered kubeadm init sequence for node.
func (c *Coordinator) controlPlanePhases(node *ClusterNode) []provisioning.Phase {
	run := func(ctx *provisioning.Context, command string) (string, error) {
		return node.Runner.Execute(ctx, command)
	}

	phases := []provisioning.Phase{
		provisioning.PhaseFunc("dependencies", func(ctx *provisioning.Context) error {
			if _, err := run(ctx, kubeadm.InstallDependenciesScript(c.packages())); err != nil {
				return fmt.Errorf("%w: %w", ErrDependencies, err)
			}
			return nil
		}),
		provisioning.PhaseFunc("open-ports", func(ctx *provisioning.Context) error {
			_, err := run(ctx, kubeadm.OpenPortsScript(kubeadm.ControlPlanePorts))
			return err
		}),
		provisioning.PhaseFunc("kubeadm-config", func(ctx *provisioning.Context) error {
			data, err := c.clusterConfig(node).RenderInitConfig()
			if err != nil {
				return err
			}
			ctx.State.InitConfig = data
			_, err = run(ctx, kubeadm.WriteFileScript(kubeadm.InitConfigPath, data))
			return err
		}),
		provisioning.PhaseFunc("kubeadm-init", func(ctx *provisioning.Context) error {
			_, err := run(ctx, kubeadm.InitScript(kubeadm.InitConfigPath))
			return err
		}),
	}
	return append(phases, c.issuePhases(node)...)
}

// issuePhases follow kubeadm init and end with a new join command. They are
// safe to repeat on an initialized control plane.
func (c *Coordinator) issuePhases(node *ClusterNode) []provisioning.Phase {
	run := func(ctx *provisioning.Context, command string) (string, error) {
		return node.Runner.Execute(ctx, command)
	}

	phases := []provisioning.Phase{
		provisioning.PhaseFunc("api-ready", func(ctx *provisioning.Context) error {
			return waitAPIReady(ctx, node)
		}),
		provisioning.PhaseFunc("cni", func(ctx *provisioning.Context) error {
			_, err := run(ctx, kubeadm.ApplyManifestScript(c.cfg.Kubernetes.CNIManifest))
			return err
		}),
	}

	if c.cfg.Kubernetes.ShouldUntaintControlPlane() {
		phases = append(phases, provisioning.PhaseFunc("untaint", func(ctx *provisioning.Context) error {
			_, err := run(ctx, kubeadm.UntaintControlPlaneScript())
			return err
		}))
	}

	phases = append(phases, provisioning.PhaseFunc("join-command", func(ctx *provisioning.Context) error {
		// Taken before the token exists so the recorded expiry is never late.
		issuedAt := c.now()
		out, err := run(ctx, kubeadm.PrintJoinCommandScript(c.cfg.Kubernetes.TokenTTL))
		if err != nil {
			return err
		}
		ctx.State.JoinScript = out
		ctx.State.IssuedAt = issuedAt
		return nil
	}))

	return phases
}

// waitAPIReady polls /readyz on the node until it answers "ok".
func waitAPIReady(ctx *provisioning.Context, node *ClusterNode) error {
	t := ctx.Timeouts
	deadline := time.Now().Add(t.APIReady)
	err := retry.WithExponentialBackoff(ctx, func() error {
		out, err := node.Runner.Execute(ctx, kubeadm.ReadyzScript())
		if err != nil {
			return err
		}
		if body := strings.TrimSpace(out); body != "ok" {
			return fmt.Errorf("API server not ready: %s", body)
		}
		return nil
	},
		retry.WithMaxRetries(retry.Unlimited),
		retry.WithInitialDelay(t.APIReadyPoll),
		retry.WithMaxDelay(t.APIReadyPoll),
		retry.WithDeadline(deadline))
	if err != nil {
		return fmt.Errorf("API server on %s did not become ready within %v: %w", node.Name, t.APIReady, err)
	}
	return nil
}

// probe runs a test command on node. Exit status 1 means false; any other
// failure, including an unreachable node, is returned as an error.
func probe(ctx context.Context, node *ClusterNode, command string) (bool, error) {
	_, err := node.Runner.Execute(ctx, command)
	if err == nil {
		return true, nil
	}
	if code, ok := ssh.ExitCode(err); ok && code == 1 {
		return false, nil
	}
	return false, err
}
