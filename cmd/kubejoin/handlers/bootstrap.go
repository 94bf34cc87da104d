package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/provisioning"
	"github.com/imamik/kubejoin/internal/ui/tui"
)

// Factory function variables for bootstrap - can be replaced in tests.
var (
	// runBootstrapTUI runs the bootstrap behind the dashboard.
	runBootstrapTUI = tui.RunBootstrapTUI
)

const metricsShutdownTimeout = 5 * time.Second

// Bootstrap initializes the control plane, publishes the join credential and
// joins every configured worker over SSH.
//
// With useTUI and a terminal on stdout, progress renders in a dashboard.
// A node summary is printed once the run finishes, whatever the outcome.
func Bootstrap(ctx context.Context, configPath string, useTUI bool, metricsAddr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ms, err := startMetricsServer(metricsAddr)
	if err != nil {
		return err
	}
	defer shutdownMetrics(ms)

	timeouts := loadTimeouts()
	var coord *bootstrap.Coordinator

	run := func(ctx context.Context, observer provisioning.Observer) error {
		if err := runPreflight(ctx, cfg, observer, true); err != nil {
			return err
		}

		key, err := sshKey(cfg)
		if err != nil {
			return err
		}
		control, err := controlPlaneNode(cfg, key, timeouts)
		if err != nil {
			return err
		}
		workers, err := workerNodes(cfg, key, timeouts)
		if err != nil {
			return err
		}

		coord, err = newCoordinator(ctx, cfg, coordinatorOptions{
			observer: observer,
			timeouts: timeouts,
			registry: ms.Registerer(),
			verifyCA: cfg.Join.VerifyCA,
			firewall: true,
			publish:  true,
		})
		if err != nil {
			return err
		}
		return coord.Bootstrap(ctx, control, workers)
	}

	if useTUI && isInteractiveTTY() {
		err = runBootstrapTUI(ctx, cfg.ClusterName, cfg.ControlPlane.Name, run)
	} else {
		err = run(ctx, newObserver())
	}

	if coord != nil {
		fmt.Print(renderJoinSummary(cfg.ClusterName, coord.Status(), isInteractiveTTY()))
	}
	if err != nil {
		return fmt.Errorf("bootstrap of %s failed: %w", cfg.ClusterName, err)
	}

	printBootstrapSuccess(cfg)
	return nil
}

// printBootstrapSuccess prints next steps after a successful bootstrap.
func printBootstrapSuccess(cfg *config.Config) {
	fmt.Println()
	fmt.Printf("Cluster %s is ready.\n", cfg.ClusterName)
	fmt.Println()
	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Println("  Inspect the nodes registered with the API server:")
	fmt.Println("     kubejoin status")
	fmt.Println()
	fmt.Println("  Join further workers from their user data:")
	fmt.Println("     kubejoin agent join -c cluster.yaml")
	fmt.Println()
}

func shutdownMetrics(ms *metricsServer) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	ms.Shutdown(ctx)
}
