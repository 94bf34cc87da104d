package kubeadm

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestAPIVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    string
	}{
		{"v1.21.2", "kubeadm.k8s.io/v1beta2"},
		{"1.21.14", "kubeadm.k8s.io/v1beta2"},
		{"v1.22.0", "kubeadm.k8s.io/v1beta3"},
		{"v1.30.5", "kubeadm.k8s.io/v1beta3"},
		{"v1.31.0", "kubeadm.k8s.io/v1beta4"},
		{"v1.35.2", "kubeadm.k8s.io/v1beta4"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()
			got, err := APIVersion(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := APIVersion("latest")
	assert.Error(t, err)
}

func TestRenderInitConfig(t *testing.T) {
	t.Parallel()

	cfg := ClusterConfig{
		KubernetesVersion: "v1.21.2",
		NodeName:          "demo-control-plane",
		AdvertiseAddress:  "10.0.0.10",
		BindPort:          6443,
		PodSubnet:         "192.168.0.0/16",
		ServiceSubnet:     "10.96.0.0/12",
		CertSANs:          []string{"203.0.113.10"},
	}

	data, err := cfg.RenderInitConfig()
	require.NoError(t, err)

	docs := splitDocuments(string(data))
	require.Len(t, docs, 2)

	var initDoc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(docs[0]), &initDoc))
	assert.Equal(t, "kubeadm.k8s.io/v1beta2", initDoc["apiVersion"])
	assert.Equal(t, "InitConfiguration", initDoc["kind"])
	endpoint := initDoc["localAPIEndpoint"].(map[string]any)
	assert.Equal(t, "10.0.0.10", endpoint["advertiseAddress"])
	assert.EqualValues(t, 6443, endpoint["bindPort"])

	var cluster map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(docs[1]), &cluster))
	assert.Equal(t, "ClusterConfiguration", cluster["kind"])
	assert.Equal(t, "v1.21.2", cluster["kubernetesVersion"])
	assert.Equal(t, "10.0.0.10:6443", cluster["controlPlaneEndpoint"])
	net := cluster["networking"].(map[string]any)
	assert.Equal(t, "192.168.0.0/16", net["podSubnet"])
}

func TestRenderInitConfig_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ClusterConfig{KubernetesVersion: "v1.21.2", PodSubnet: "192.168.0.0/16"}.RenderInitConfig()
	assert.ErrorContains(t, err, "advertise address")

	_, err = ClusterConfig{KubernetesVersion: "v1.21.2", AdvertiseAddress: "10.0.0.10"}.RenderInitConfig()
	assert.ErrorContains(t, err, "pod subnet")

	_, err = ClusterConfig{KubernetesVersion: "bogus", AdvertiseAddress: "10.0.0.10", PodSubnet: "192.168.0.0/16"}.RenderInitConfig()
	assert.Error(t, err)
}

var regexpSplitDocs = regexp.MustCompile(`(?m)^---\n`)

func splitDocuments(s string) []string {
	var docs []string
	for _, d := range regexpSplitDocs.Split(s, -1) {
		if d != "" {
			docs = append(docs, d)
		}
	}
	return docs
}
