// Package provisioning provides the phase runner and observability shared by
// the bootstrap coordinator.
//
// # Core Types
//
// Context carries configuration, timeouts, shared state and the observer.
// Phase defines a sequential step with Name() and Provision() methods.
// State accumulates results from each phase (kubeadm config, kubeconfig,
// join script).
// Observer receives log lines and structured events; ConsoleObserver writes
// them through the standard logger and LogrObserver through a logr.Logger.
package provisioning
