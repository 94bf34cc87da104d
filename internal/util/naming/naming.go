package naming

import "fmt"

// Naming functions for cluster resources.
// Everything a cluster owns is derived from its name so a second run finds
// what the first one created.

func ControlPlane(cluster string) string {
	return fmt.Sprintf("%s-control-plane", cluster)
}

func Worker(cluster string, index int) string {
	return fmt.Sprintf("%s-worker-%d", cluster, index)
}

func Firewall(cluster string) string {
	return cluster
}

// CredentialKey is the store key the join credential is published under.
func CredentialKey(cluster string) string {
	return fmt.Sprintf("%s/join-credential.json", cluster)
}
