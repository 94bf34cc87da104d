// Package testing provides test utilities, builders, and fakes for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - FakeCluster / FakeNode: an in-memory kubeadm control plane and the
//     command runners of its nodes
//   - FastTimeouts: millisecond timeouts for retry loops
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithClusterName("demo").
//	    WithWorkers(3).
//	    Build()
//
//	cluster := testing.NewFakeCluster(cfg.APIEndpoint())
//	control := cluster.ControlPlane(cfg.ControlPlane.Name)
package testing
