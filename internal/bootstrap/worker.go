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

// errCredentialUnusable marks a fetched credential that cannot be used yet.
var errCredentialUnusable = errors.New("published credential is expired")

// AwaitCredential fetches the published credential, waiting for it to appear
// when the worker started before the control plane. Expired credentials are
// treated as not yet published. Gives up after the credential wait timeout.
func (c *Coordinator) AwaitCredential(ctx context.Context) (*JoinCredential, error) {
	key := c.CredentialKey()
	var cred *JoinCredential

	err := retry.WithExponentialBackoff(ctx, func() error {
		data, err := c.store.Fetch(ctx, key)
		if err != nil {
			return err
		}
		fetched, err := UnmarshalCredential(data)
		if err != nil {
			return retry.Fatal(err)
		}
		if fetched.Expired(c.now()) {
			return fmt.Errorf("%w: %s", errCredentialUnusable, fetched.ID)
		}
		cred = fetched
		return nil
	},
		retry.WithMaxRetries(retry.Unlimited),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(c.timeouts.RetryMaxDelay),
		retry.WithDeadline(time.Now().Add(c.timeouts.CredentialWait)),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			if errors.Is(err, credstore.ErrNotPublished) || errors.Is(err, errCredentialUnusable) {
				c.observer.Printf("[join] Waiting for join credential at %s (attempt %d, next in %v)",
					c.store.Ref(key), attempt, delay.Round(time.Millisecond))
				return
			}
			c.observer.Printf("[join] Fetching join credential failed (attempt %d): %v", attempt, err)
		}))
	if err != nil {
		return nil, fmt.Errorf("no usable join credential at %s: %w", c.store.Ref(key), err)
	}
	return cred, nil
}

// JoinWorker joins node to the control plane using cred. It is a no-op when
// the node already joined. Dependency failures, rejected credentials and
// expiry are fatal; everything else is retried with backoff until the
// credential expires or the configured attempt cap is reached.
func (c *Coordinator) JoinWorker(ctx context.Context, node *ClusterNode, cred *JoinCredential) error {
	if err := node.validate(RoleWorker); err != nil {
		return retry.Fatal(err)
	}
	if err := cred.Validate(); err != nil {
		return retry.Fatal(err)
	}

	start := time.Now()
	observer := c.nodeObserver(node)
	c.transition(observer, node, StateProvisioning)

	result, err := c.joinWorker(ctx, observer, node, cred)
	if err != nil {
		if errors.Is(err, retry.ErrDeadlineExceeded) {
			err = retry.Fatal(fmt.Errorf("%w: %s expired at %s before %s joined: %w",
				ErrCredentialExpired, cred.ID, cred.ExpiresAt.Format(time.RFC3339), node.Name, err))
		}
		c.registry.Fail(node, err)
		provisioning.LogNodeState(observer, node.Name, string(StateJoinFailed))
		c.metrics.recordJoin(resultFatal, time.Since(start))
		return err
	}

	c.transition(observer, node, StateJoined)
	c.metrics.recordJoin(result, time.Since(start))
	return nil
}

// Join waits for the published credential and joins node with it.
func (c *Coordinator) Join(ctx context.Context, node *ClusterNode) error {
	cred, err := c.AwaitCredential(ctx)
	if err != nil {
		c.registry.Fail(node, err)
		return err
	}
	return c.JoinWorker(ctx, node, cred)
}

func (c *Coordinator) joinWorker(ctx context.Context, observer provisioning.Observer, node *ClusterNode, cred *JoinCredential) (string, error) {
	joined, err := probe(ctx, node, kubeadm.IsJoinedScript())
	if err != nil {
		return "", fmt.Errorf("failed to check membership of %s: %w", node.Name, err)
	}
	if joined {
		observer.Printf("[join] %s already joined, nothing to do", node.Name)
		c.metrics.recordJoinAttempt(resultNoop)
		return resultNoop, nil
	}

	if cred.Expired(c.now()) {
		return "", retry.Fatal(fmt.Errorf("%w: %s expired at %s",
			ErrCredentialExpired, cred.ID, cred.ExpiresAt.Format(time.RFC3339)))
	}

	if _, err := node.Runner.Execute(ctx, kubeadm.InstallDependenciesScript(c.packages())); err != nil {
		return "", retry.Fatal(fmt.Errorf("%w: %w", ErrDependencies, err))
	}
	if _, err := node.Runner.Execute(ctx, kubeadm.OpenPortsScript(kubeadm.WorkerPorts)); err != nil {
		return "", retry.Fatal(fmt.Errorf("%w: opening worker ports: %w", ErrDependencies, err))
	}
	c.transition(observer, node, StateDependenciesInstalled)

	script, err := kubeadm.JoinScript(cred.JoinCommand(node.Name))
	if err != nil {
		return "", retry.Fatal(fmt.Errorf("%w: %w", ErrInvalidCredential, err))
	}
	c.transition(observer, node, StateJoinRequested)
	observer.Printf("[join] %s: %s", node.Name, cred.JoinCommand(node.Name).Redacted())

	attempts := 0
	err = retry.WithExponentialBackoff(ctx, func() error {
		attempts++
		err := c.joinAttempt(ctx, observer, node, cred, script, attempts)
		c.registry.RecordAttempt(node, err)
		switch {
		case err == nil:
			c.metrics.recordJoinAttempt(resultSuccess)
		case retry.IsFatal(err):
			c.metrics.recordJoinAttempt(resultFatal)
		default:
			c.metrics.recordJoinAttempt(resultRetry)
		}
		return err
	}, c.joinRetryOptions(observer, node, cred)...)
	if err != nil {
		return "", err
	}
	return resultSuccess, nil
}

// joinAttempt runs a single kubeadm join.
func (c *Coordinator) joinAttempt(ctx context.Context, observer provisioning.Observer, node *ClusterNode, cred *JoinCredential, script string, attempt int) error {
	if cred.Expired(c.now()) {
		return retry.Fatal(fmt.Errorf("%w: %s", ErrCredentialExpired, cred.ID))
	}

	if attempt > 1 {
		// A failed join leaves a partial kubelet setup behind.
		if _, err := node.Runner.Execute(ctx, kubeadm.ResetScript()); err != nil {
			observer.Printf("[join] %s: reset before retry failed: %v", node.Name, err)
		}
	}

	if c.verifier != nil {
		if err := c.verifier.VerifyCA(ctx, cred.Endpoint, cred.CACertHash); err != nil {
			if errors.Is(err, kubeadm.ErrCACertHashMismatch) {
				return retry.Fatal(fmt.Errorf("%w: %w", ErrAuth, err))
			}
			return fmt.Errorf("control plane %s not reachable: %w", cred.Endpoint, err)
		}
	}

	out, err := node.Runner.Execute(ctx, script)
	if err != nil {
		return classifyJoinError(out, redactToken(err, cred.Token))
	}
	return nil
}

// redactToken masks the bootstrap token in errors that echo the join command.
func redactToken(err error, token string) error {
	err = ssh.Redact(err, token, kubeadm.RedactToken(token))
	if _, secret, ok := strings.Cut(token, "."); ok {
		err = ssh.Redact(err, secret, "****")
	}
	return err
}

func (c *Coordinator) joinRetryOptions(observer provisioning.Observer, node *ClusterNode, cred *JoinCredential) []retry.Option {
	maxRetries := retry.Unlimited
	if n := c.cfg.Join.MaxAttempts; n > 0 {
		maxRetries = n - 1
	}
	return []retry.Option{
		retry.WithMaxRetries(maxRetries),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(c.timeouts.RetryMaxDelay),
		retry.WithDeadline(cred.ExpiresAt),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			provisioning.LogJoinAttempt(observer, node.Name, attempt, err, delay)
		}),
	}
}

func (c *Coordinator) transition(observer provisioning.Observer, node *ClusterNode, state NodeState) {
	if err := c.registry.Transition(node, state); err != nil {
		observer.Printf("[join] %v", err)
		return
	}
	provisioning.LogNodeState(observer, node.Name, string(state))
}
