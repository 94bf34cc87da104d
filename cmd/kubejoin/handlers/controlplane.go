package handlers

import (
	"context"
	"fmt"
)

// ControlPlane initializes the control plane and publishes the join
// credential without touching any worker. Workers started from user data
// pick the credential up with "kubejoin agent join".
func ControlPlane(ctx context.Context, configPath string) error {
	cfg, err := loadSharedConfig(configPath, "control-plane")
	if err != nil {
		return err
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
	control, err := controlPlaneNode(cfg, key, timeouts)
	if err != nil {
		return err
	}

	coord, err := newCoordinator(ctx, cfg, coordinatorOptions{
		observer: observer,
		timeouts: timeouts,
		publish:  true,
	})
	if err != nil {
		return err
	}

	cred, err := coord.InitializeControlPlane(ctx, control)
	if err != nil {
		return fmt.Errorf("control plane initialization failed: %w", err)
	}
	ref, err := coord.PublishCredential(ctx, cred)
	if err != nil {
		return fmt.Errorf("control plane %s initialized but credential not published: %w", control.Name, err)
	}

	fmt.Println()
	fmt.Printf("Control plane %s initialized.\n", control.Name)
	fmt.Printf("  Credential: %s\n", cred)
	fmt.Printf("  Published:  %s\n", ref)
	fmt.Println()
	return nil
}
