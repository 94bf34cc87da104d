// Package k8s talks to the control plane API server.
//
// Client answers readiness and membership questions with the admin
// kubeconfig. ClusterInfoVerifier runs on a joining worker before it holds
// any credentials: it reads the public cluster-info ConfigMap anonymously and
// checks the advertised CA against the pinned discovery hash.
package k8s
