package k8s

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/kubejoin/internal/kubeadm"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	clusterInfoNamespace = "kube-public"
	clusterInfoName      = "cluster-info"
	clusterInfoKey       = "kubeconfig"
)

// ErrNoClusterCA means cluster-info did not advertise a CA.
var ErrNoClusterCA = errors.New("cluster-info has no certificate authority data")

// ClusterInfoVerifier checks that the API server at an endpoint is backed by
// the pinned cluster CA.
type ClusterInfoVerifier struct {
	Timeout time.Duration
}

// NewClusterInfoVerifier creates a verifier with a 10 second request timeout.
func NewClusterInfoVerifier() *ClusterInfoVerifier {
	return &ClusterInfoVerifier{Timeout: 10 * time.Second}
}

// VerifyCA fetches cluster-info anonymously from endpoint (host:port),
// checks its CA against pinned and then re-reads cluster-info over a
// connection that trusts only that CA. A pin mismatch wraps
// kubeadm.ErrCACertHashMismatch; all other errors mean the control plane
// could not be reached or is not serving yet.
func (v *ClusterInfoVerifier) VerifyCA(ctx context.Context, endpoint, pinned string) error {
	host := "https://" + endpoint

	// Trust nothing yet: the CA is only accepted once it matches the pin.
	insecure := &rest.Config{
		Host:            host,
		Timeout:         v.Timeout,
		TLSClientConfig: rest.TLSClientConfig{Insecure: true},
	}
	caData, err := v.fetchCA(ctx, insecure)
	if err != nil {
		return err
	}

	if err := kubeadm.VerifyCACertHash(caData, pinned); err != nil {
		return fmt.Errorf("cluster CA at %s: %w", endpoint, err)
	}

	pinnedConfig := &rest.Config{
		Host:            host,
		Timeout:         v.Timeout,
		TLSClientConfig: rest.TLSClientConfig{CAData: caData},
	}
	if _, err := v.fetchCA(ctx, pinnedConfig); err != nil {
		return fmt.Errorf("API server at %s is not serving with the pinned CA: %w", endpoint, err)
	}
	return nil
}

func (v *ClusterInfoVerifier) fetchCA(ctx context.Context, config *rest.Config) ([]byte, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	cm, err := clientset.CoreV1().ConfigMaps(clusterInfoNamespace).Get(ctx, clusterInfoName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", clusterInfoNamespace, clusterInfoName, err)
	}

	raw, ok := cm.Data[clusterInfoKey]
	if !ok {
		return nil, fmt.Errorf("%s/%s has no %s key", clusterInfoNamespace, clusterInfoName, clusterInfoKey)
	}
	kubeconfig, err := clientcmd.Load([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster-info kubeconfig: %w", err)
	}
	for _, cluster := range kubeconfig.Clusters {
		if len(cluster.CertificateAuthorityData) > 0 {
			return cluster.CertificateAuthorityData, nil
		}
	}
	return nil, ErrNoClusterCA
}
