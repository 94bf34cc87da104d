// Package hcloud opens and checks the kubeadm port contract on a Hetzner
// Cloud firewall.
//
// The firewall is applied to every server labelled with the cluster name, and
// only admits the contract ports from the configured worker source ranges.
// Creating networks or servers is left to the caller's infrastructure.
package hcloud
