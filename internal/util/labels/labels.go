package labels

// Standard label keys, namespaced under kubejoin.io.
const (
	// KeyCluster identifies which cluster a resource belongs to
	KeyCluster = "kubejoin.io/cluster"

	// KeyRole identifies the node role a resource serves (control-plane, worker)
	KeyRole = "kubejoin.io/role"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "kubejoin.io/managed-by"
)

// Role values
const (
	RoleControlPlane = "control-plane"
	RoleWorker       = "worker"
)

// ManagedByKubejoin marks resources owned by this tool.
const ManagedByKubejoin = "kubejoin"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the cluster name pre-set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedByKubejoin,
		},
	}
}

// WithRole adds a role label (e.g., "control-plane", "worker").
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForCluster returns a label selector string for all resources in a cluster.
func SelectorForCluster(clusterName string) string {
	return KeyCluster + "=" + clusterName
}

// SelectorForRole narrows SelectorForCluster to one role.
func SelectorForRole(clusterName, role string) string {
	return SelectorForCluster(clusterName) + "," + KeyRole + "=" + role
}
