// Package config defines the cluster configuration consumed by the bootstrap
// coordinator and the CLI.
//
// [Config] is loaded from a YAML file with [Load]. Defaults follow the
// reference kubeadm deployment (Kubernetes v1.21, 192.168.0.0/16 pod
// network, API server on 6443). Secrets are never read from the file; they
// come from the environment. Timeouts are tuned through KUBEJOIN_*
// environment variables, see [LoadTimeouts].
package config
