package kubeadm

import (
	"bytes"
	"fmt"

	"k8s.io/apimachinery/pkg/util/version"
	"sigs.k8s.io/yaml"
)

// ClusterConfig holds the values rendered into the kubeadm init configuration.
type ClusterConfig struct {
	KubernetesVersion string
	NodeName          string
	AdvertiseAddress  string
	BindPort          int
	PodSubnet         string
	ServiceSubnet     string
	// CertSANs are extra API server certificate names, e.g. the public address.
	CertSANs []string
}

type initConfiguration struct {
	APIVersion       string           `json:"apiVersion"`
	Kind             string           `json:"kind"`
	LocalAPIEndpoint localAPIEndpoint `json:"localAPIEndpoint"`
	NodeRegistration nodeRegistration `json:"nodeRegistration,omitempty"`
}

type localAPIEndpoint struct {
	AdvertiseAddress string `json:"advertiseAddress"`
	BindPort         int    `json:"bindPort"`
}

type nodeRegistration struct {
	Name string `json:"name,omitempty"`
}

type clusterConfiguration struct {
	APIVersion           string     `json:"apiVersion"`
	Kind                 string     `json:"kind"`
	KubernetesVersion    string     `json:"kubernetesVersion"`
	ControlPlaneEndpoint string     `json:"controlPlaneEndpoint"`
	Networking           networking `json:"networking"`
	APIServer            apiServer  `json:"apiServer,omitempty"`
}

type networking struct {
	PodSubnet     string `json:"podSubnet"`
	ServiceSubnet string `json:"serviceSubnet,omitempty"`
}

type apiServer struct {
	CertSANs []string `json:"certSANs,omitempty"`
}

// APIVersion returns the kubeadm config API group version understood by the
// given Kubernetes release.
func APIVersion(kubernetesVersion string) (string, error) {
	v, err := version.ParseGeneric(kubernetesVersion)
	if err != nil {
		return "", fmt.Errorf("invalid kubernetes version %q: %w", kubernetesVersion, err)
	}
	switch {
	case v.LessThan(version.MajorMinor(1, 22)):
		return "kubeadm.k8s.io/v1beta2", nil
	case v.LessThan(version.MajorMinor(1, 31)):
		return "kubeadm.k8s.io/v1beta3", nil
	default:
		return "kubeadm.k8s.io/v1beta4", nil
	}
}

// RenderInitConfig renders the InitConfiguration and ClusterConfiguration
// documents passed to "kubeadm init --config".
func (c ClusterConfig) RenderInitConfig() ([]byte, error) {
	apiVersion, err := APIVersion(c.KubernetesVersion)
	if err != nil {
		return nil, err
	}
	if c.AdvertiseAddress == "" {
		return nil, fmt.Errorf("advertise address is required")
	}
	if c.PodSubnet == "" {
		return nil, fmt.Errorf("pod subnet is required")
	}

	initDoc := initConfiguration{
		APIVersion: apiVersion,
		Kind:       "InitConfiguration",
		LocalAPIEndpoint: localAPIEndpoint{
			AdvertiseAddress: c.AdvertiseAddress,
			BindPort:         c.BindPort,
		},
		NodeRegistration: nodeRegistration{Name: c.NodeName},
	}
	cluster := clusterConfiguration{
		APIVersion:           apiVersion,
		Kind:                 "ClusterConfiguration",
		KubernetesVersion:    c.KubernetesVersion,
		ControlPlaneEndpoint: joinHostPort(c.AdvertiseAddress, c.BindPort),
		Networking: networking{
			PodSubnet:     c.PodSubnet,
			ServiceSubnet: c.ServiceSubnet,
		},
		APIServer: apiServer{CertSANs: c.CertSANs},
	}

	var buf bytes.Buffer
	for i, doc := range []any{initDoc, cluster} {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal kubeadm config: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
