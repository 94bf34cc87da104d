package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/kubejoin/internal/provisioning"
	"github.com/imamik/kubejoin/internal/util/async"
	"github.com/imamik/kubejoin/internal/util/labels"
	"github.com/imamik/kubejoin/internal/util/retry"
)

// Bootstrap runs the whole sequence: open and validate the firewall contract
// (when a Firewall is configured), initialize the control plane, publish the
// credential and join every worker concurrently.
//
// A control plane failure returns before any worker is touched. Worker
// failures do not stop the other workers; they are reported per node and
// returned joined together.
func (c *Coordinator) Bootstrap(ctx context.Context, control *ClusterNode, workers []*ClusterNode) error {
	start := time.Now()

	if limit := c.cfg.Workers.Max; len(workers) > limit {
		return retry.Fatal(fmt.Errorf("%d workers requested but the pool maximum is %d", len(workers), limit))
	}

	if c.firewall != nil {
		if err := c.ensureFirewall(ctx); err != nil {
			return err
		}
	}

	cred, err := c.InitializeControlPlane(ctx, control)
	if err != nil {
		return err
	}

	ref, err := c.PublishCredential(ctx, cred)
	if err != nil {
		return fmt.Errorf("control plane %s initialized but credential not published: %w", control.Name, err)
	}
	c.observer.Printf("[bootstrap] Credential %s published to %s", cred.ID, ref)

	tasks := make([]async.Task, 0, len(workers))
	for _, w := range workers {
		tasks = append(tasks, async.Task{
			Name: w.Name,
			Func: func(ctx context.Context) error {
				return c.JoinWorker(ctx, w, cred)
			},
		})
	}

	c.observer.Printf("[bootstrap] Joining %d workers", len(workers))
	err = async.RunParallelLimit(ctx, tasks, c.cfg.Workers.Parallelism)
	c.reportWorkers()
	if err != nil {
		return fmt.Errorf("worker join failed: %w", err)
	}

	c.observer.Printf("[bootstrap] Cluster %s bootstrapped in %v", c.cfg.ClusterName, time.Since(start).Round(time.Millisecond))
	return nil
}

// ensureFirewall opens the join contract on the cloud firewall and checks
// that nothing is missing afterwards.
func (c *Coordinator) ensureFirewall(ctx context.Context) error {
	name := c.cfg.Firewall.HCloud.Name
	provisioning.LogPhaseStart(c.observer, "firewall")
	start := time.Now()

	fwLabels := labels.NewLabelBuilder(c.cfg.ClusterName).Build()
	if _, err := c.firewall.EnsureFirewall(ctx, name, labels.SelectorForCluster(c.cfg.ClusterName),
		c.cfg.Firewall.WorkerSources, fwLabels); err != nil {
		provisioning.LogPhaseFailed(c.observer, "firewall", err)
		return retry.Fatal(fmt.Errorf("failed to open join contract on firewall %s: %w", name, err))
	}

	missing, err := c.firewall.ValidateContract(ctx, name)
	if err != nil {
		provisioning.LogPhaseFailed(c.observer, "firewall", err)
		return retry.Fatal(fmt.Errorf("failed to validate firewall %s: %w", name, err))
	}
	if len(missing) > 0 {
		ports := make([]string, 0, len(missing))
		for _, p := range missing {
			ports = append(ports, p.String())
		}
		err := fmt.Errorf("firewall %s does not admit ports %s", name, strings.Join(ports, ", "))
		provisioning.LogPhaseFailed(c.observer, "firewall", err)
		return retry.Fatal(err)
	}

	provisioning.LogPhaseComplete(c.observer, "firewall", time.Since(start))
	return nil
}

func (c *Coordinator) reportWorkers() {
	statuses := c.Status()
	joined := 0
	workers := 0
	for _, s := range statuses {
		if s.Role != RoleWorker {
			continue
		}
		workers++
		if s.State == StateJoined {
			joined++
		}
	}
	c.observer.Progress("join", joined, workers)
}
