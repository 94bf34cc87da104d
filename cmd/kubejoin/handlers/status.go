package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/k8s"
)

// nodeLister is the part of the Kubernetes client status needs.
type nodeLister interface {
	ListNodes(ctx context.Context) ([]k8s.NodeInfo, error)
}

// Factory function variables for status - can be replaced in tests.
var (
	// newClientFromFile creates a Kubernetes client from a kubeconfig file.
	newClientFromFile = func(path string) (nodeLister, error) {
		return k8s.NewFromKubeconfigFile(path)
	}

	// newClientFromKubeconfig creates a Kubernetes client for server.
	newClientFromKubeconfig = func(kubeconfig []byte, server string) (nodeLister, error) {
		return k8s.NewFromKubeconfigWithServer(kubeconfig, server)
	}
)

// NodeStatusView is the JSON shape of one registered node.
type NodeStatusView struct {
	Name           string `json:"name"`
	Role           string `json:"role"`
	Ready          bool   `json:"ready"`
	InternalIP     string `json:"internalIP,omitempty"`
	KubeletVersion string `json:"kubeletVersion,omitempty"`
	Age            string `json:"age"`
}

// Status lists the nodes registered with the control plane. The API server
// is the membership authority, so this reflects joins done by any process.
//
// Without kubeconfigPath the admin kubeconfig is read from the control plane
// over SSH and pointed at its public address.
func Status(ctx context.Context, configPath, kubeconfigPath string, jsonOutput bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	client, err := statusClient(ctx, cfg, kubeconfigPath)
	if err != nil {
		return err
	}

	nodes, err := client.ListNodes(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printNodesJSON(nodes)
	}
	fmt.Print(renderClusterNodes(cfg.ClusterName, nodes, isInteractiveTTY()))
	return nil
}

func statusClient(ctx context.Context, cfg *config.Config, kubeconfigPath string) (nodeLister, error) {
	if kubeconfigPath != "" {
		client, err := newClientFromFile(kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		return client, nil
	}

	timeouts := loadTimeouts()
	key, err := sshKey(cfg)
	if err != nil {
		return nil, err
	}
	control, err := controlPlaneNode(cfg, key, timeouts)
	if err != nil {
		return nil, err
	}
	coord, err := newCoordinator(ctx, cfg, coordinatorOptions{observer: newObserver(), timeouts: timeouts})
	if err != nil {
		return nil, err
	}

	kubeconfig, err := coord.AdminKubeconfig(ctx, control)
	if err != nil {
		return nil, err
	}
	server := "https://" + net.JoinHostPort(cfg.ControlPlane.Host, strconv.Itoa(cfg.Kubernetes.APIPort))
	client, err := newClientFromKubeconfig(kubeconfig, server)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return client, nil
}

func printNodesJSON(nodes []k8s.NodeInfo) error {
	views := make([]NodeStatusView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, NodeStatusView{
			Name:           n.Name,
			Role:           n.Role,
			Ready:          n.Ready,
			InternalIP:     n.InternalIP,
			KubeletVersion: n.KubeletVersion,
			Age:            formatAge(n.Age),
		})
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal node status: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
