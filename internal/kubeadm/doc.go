// Package kubeadm renders and parses the kubeadm artifacts exchanged during
// cluster bootstrap.
//
// It owns the join command wire format printed by
// "kubeadm token create --print-join-command", the discovery CA hash pin,
// the kubeadm init configuration, the shell scripts executed on nodes, and
// the port contract between the control plane and its workers.
package kubeadm
