package bootstrap

import (
	"context"
	"fmt"
)

// Role is a node's function in the cluster.
type Role string

// Node roles.
const (
	RoleControlPlane Role = "control-plane"
	RoleWorker       Role = "worker"
)

// Runner executes shell commands on a node. Implemented by the SSH client for
// remote nodes and by ssh.LocalRunner for the current host.
type Runner interface {
	Execute(ctx context.Context, command string) (string, error)
	Host() string
}

// ClusterNode is a machine taking part in the bootstrap.
type ClusterNode struct {
	// ID identifies the node in the membership registry. Defaults to Name.
	ID   string
	Name string
	Role Role
	// PrivateIP is the address inside the cluster network.
	PrivateIP string
	// PublicIP is only set for the control plane.
	PublicIP string
	Runner   Runner
}

// Key returns the registry key for the node.
func (n *ClusterNode) Key() string {
	if n.ID != "" {
		return n.ID
	}
	return n.Name
}

func (n *ClusterNode) validate(role Role) error {
	if n == nil {
		return fmt.Errorf("node is nil")
	}
	if n.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if n.Role != role {
		return fmt.Errorf("node %s has role %q, expected %q", n.Name, n.Role, role)
	}
	if n.Runner == nil {
		return fmt.Errorf("node %s has no command runner", n.Name)
	}
	return nil
}
