package k8s

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	labelControlPlane = "node-role.kubernetes.io/control-plane"
	labelMaster       = "node-role.kubernetes.io/master"
)

// Client wraps the Kubernetes API operations the coordinator needs.
type Client struct {
	clientset kubernetes.Interface
	raw       rest.Interface
}

// NodeInfo summarizes a registered node.
type NodeInfo struct {
	Name           string
	Role           string
	Ready          bool
	InternalIP     string
	KubeletVersion string
	Age            time.Duration
}

// NewFromKubeconfig creates a client from kubeconfig bytes.
func NewFromKubeconfig(kubeconfig []byte) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
	}
	return newFromConfig(config)
}

// NewFromKubeconfigWithServer is NewFromKubeconfig with the API server URL
// replaced, for admin kubeconfigs that point at an address only reachable
// inside the cluster network. The server certificate must still cover it.
func NewFromKubeconfigWithServer(kubeconfig []byte, server string) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
	}
	if server != "" {
		config.Host = server
	}
	return newFromConfig(config)
}

// NewFromKubeconfigFile creates a client from a kubeconfig file.
func NewFromKubeconfigFile(path string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	return newFromConfig(config)
}

func newFromConfig(config *rest.Config) (*Client, error) {
	config.Timeout = 30 * time.Second
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Client{
		clientset: clientset,
		raw:       clientset.Discovery().RESTClient(),
	}, nil
}

// NewFromClientset wraps an existing clientset. Readyz is unavailable unless
// the clientset exposes a REST client.
func NewFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// Readyz queries the API server /readyz endpoint.
func (c *Client) Readyz(ctx context.Context) error {
	if c.raw == nil {
		return fmt.Errorf("readyz: client has no REST transport")
	}
	body, err := c.raw.Get().AbsPath("/readyz").DoRaw(ctx)
	if err != nil {
		return fmt.Errorf("API server not ready: %w", err)
	}
	if strings.TrimSpace(string(body)) != "ok" {
		return fmt.Errorf("API server not ready: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// WaitReady polls Readyz until it succeeds or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, interval, timeout time.Duration) error {
	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		lastErr = c.Readyz(ctx)
		return lastErr == nil, nil
	})
	if err != nil && lastErr != nil {
		return fmt.Errorf("%w (last probe: %w)", err, lastErr)
	}
	return err
}

// NodeJoined reports whether a node object with the given name exists.
func (c *Client) NodeJoined(ctx context.Context, name string) (bool, error) {
	_, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get node %s: %w", name, err)
	}
	return true, nil
}

// ListNodes returns all registered nodes sorted by name.
func (c *Client) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]NodeInfo, 0, len(list.Items))
	for i := range list.Items {
		nodes = append(nodes, nodeInfo(&list.Items[i]))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func nodeInfo(node *corev1.Node) NodeInfo {
	info := NodeInfo{
		Name:           node.Name,
		Role:           "worker",
		KubeletVersion: node.Status.NodeInfo.KubeletVersion,
	}
	if !node.CreationTimestamp.IsZero() {
		info.Age = time.Since(node.CreationTimestamp.Time)
	}
	if _, ok := node.Labels[labelControlPlane]; ok {
		info.Role = "control-plane"
	} else if _, ok := node.Labels[labelMaster]; ok {
		info.Role = "control-plane"
	}
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			info.Ready = cond.Status == corev1.ConditionTrue
		}
	}
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			info.InternalIP = addr.Address
			break
		}
	}
	return info
}
