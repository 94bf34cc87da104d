package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/config"
)

// hostname resolves the local node name for agent joins.
var hostname = os.Hostname

// Join waits for the published credential and joins one configured worker
// over SSH. Re-running it on a joined worker is a no-op.
func Join(ctx context.Context, configPath, nodeName, metricsAddr string) error {
	cfg, err := loadSharedConfig(configPath, "join")
	if err != nil {
		return err
	}

	nc, ok := cfg.WorkerByName(nodeName)
	if !ok {
		return fmt.Errorf("worker %q is not configured in %s", nodeName, cfg.ClusterName)
	}

	observer := newObserver()
	if err := runPreflight(ctx, cfg, observer, true); err != nil {
		return err
	}

	timeouts := loadTimeouts()
	key, err := sshKey(cfg)
	if err != nil {
		return err
	}
	node, err := remoteNode(cfg, nc, bootstrap.RoleWorker, key, timeouts)
	if err != nil {
		return err
	}

	return joinNode(ctx, cfg, node, metricsAddr, coordinatorOptions{
		observer: observer,
		timeouts: timeouts,
		verifyCA: cfg.Join.VerifyCA,
	})
}

// AgentJoin joins the current host as a worker. It is meant to run from the
// worker's own user data, possibly before the control plane exists. The
// cluster CA is always checked against the pinned hash before joining.
func AgentJoin(ctx context.Context, configPath, nodeName, privateIP, metricsAddr string) error {
	cfg, err := loadSharedConfig(configPath, "agent join")
	if err != nil {
		return err
	}

	if nodeName == "" {
		nodeName, err = hostname()
		if err != nil {
			return fmt.Errorf("failed to determine node name: %w", err)
		}
	}

	observer := newObserver()
	if err := runPreflight(ctx, cfg, observer, false); err != nil {
		return err
	}

	node := &bootstrap.ClusterNode{
		Name:      nodeName,
		Role:      bootstrap.RoleWorker,
		PrivateIP: privateIP,
		Runner:    newLocalRunner(),
	}

	return joinNode(ctx, cfg, node, metricsAddr, coordinatorOptions{
		observer: observer,
		timeouts: loadTimeouts(),
		verifyCA: true,
	})
}

// joinNode runs the join for node and prints its final state.
func joinNode(ctx context.Context, cfg *config.Config, node *bootstrap.ClusterNode, metricsAddr string, opts coordinatorOptions) error {
	ms, err := startMetricsServer(metricsAddr)
	if err != nil {
		return err
	}
	defer shutdownMetrics(ms)
	opts.registry = ms.Registerer()

	coord, err := newCoordinator(ctx, cfg, opts)
	if err != nil {
		return err
	}

	joinErr := coord.Join(ctx, node)
	fmt.Print(renderJoinSummary(cfg.ClusterName, coord.Status(), isInteractiveTTY()))
	if joinErr != nil {
		return fmt.Errorf("join of %s failed: %w", node.Name, joinErr)
	}
	return nil
}
