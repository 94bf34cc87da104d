// Package bootstrap coordinates a single kubeadm control plane and an elastic
// pool of workers joining it.
//
// The Coordinator initializes the control plane, turns the printed join
// command into a time-limited JoinCredential, publishes it through a
// credstore.Store and drives each worker through
//
//	Provisioning -> DependenciesInstalled -> JoinRequested -> Joined | JoinFailed
//
// Joins retry transient failures with exponential backoff until the
// credential expires. Authentication failures, expiry and dependency
// installation failures are fatal and never retried. Re-running a join on a
// node that already holds a kubelet kubeconfig is a no-op.
package bootstrap
