package kubeadm

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Well-known kubeadm paths on a node.
const (
	AdminKubeconfig   = "/etc/kubernetes/admin.conf"
	KubeletKubeconfig = "/etc/kubernetes/kubelet.conf"
	InitConfigPath    = "/tmp/kubeadm-config.yaml"
	JoinCommandPath   = "/tmp/kubeadm-join-command.sh"
)

// Packages pins the node software installed before init or join.
type Packages struct {
	// Repository is the apt sources line for the Kubernetes packages.
	Repository string
	KeyURL     string
	// Version pins kubeadm, kubelet and kubectl, e.g. "1.21.1-00". Empty installs the latest.
	Version          string
	ContainerRuntime string
}

const keyringPath = "/etc/apt/keyrings/kubernetes-archive-keyring.gpg"

// InstallDependenciesScript prepares a fresh Debian/Ubuntu host for kubeadm.
func InstallDependenciesScript(p Packages) string {
	pkgs := []string{"kubeadm", "kubelet", "kubectl"}
	if p.Version != "" {
		for i, name := range pkgs {
			pkgs[i] = name + "=" + p.Version
		}
	}

	return script(
		"export DEBIAN_FRONTEND=noninteractive",
		"apt-get update",
		"apt-get install -y apt-transport-https ca-certificates curl",
		"mkdir -p /etc/apt/keyrings",
		fmt.Sprintf("curl -fsSL %s | gpg --dearmor --yes -o %s", shellQuote(p.KeyURL), keyringPath),
		fmt.Sprintf("echo %s > /etc/apt/sources.list.d/kubernetes.list", shellQuote(p.Repository)),
		"apt-get update",
		fmt.Sprintf("apt-get install -y %s %s", strings.Join(pkgs, " "), shellQuote(p.ContainerRuntime)),
		"apt-mark hold kubeadm kubelet kubectl",
		"swapoff -a",
		`sed -i '/\sswap\s/ s/^#*/#/' /etc/fstab`,
		"modprobe br_netfilter",
		"sysctl -w net.bridge.bridge-nf-call-iptables=1",
		"sysctl -w net.ipv4.ip_forward=1",
		"systemctl enable --now kubelet",
	)
}

// OpenPortsScript allows the given ranges through ufw.
func OpenPortsScript(ranges []PortRange) string {
	lines := make([]string, 0, len(ranges)+1)
	for _, r := range ranges {
		lines = append(lines, fmt.Sprintf("ufw allow %s/tcp", strings.ReplaceAll(r.String(), "-", ":")))
	}
	lines = append(lines, "ufw reload || true")
	return script(lines...)
}

// WriteFileScript writes data to path without interpreting it in the shell.
func WriteFileScript(path string, data []byte) string {
	return fmt.Sprintf("echo %s | base64 -d > %s", base64.StdEncoding.EncodeToString(data), shellQuote(path))
}

// InitScript runs kubeadm init from a config file.
func InitScript(configPath string) string {
	return "kubeadm init --config=" + shellQuote(configPath)
}

// ApplyManifestScript applies a manifest URL with the admin kubeconfig.
func ApplyManifestScript(manifest string) string {
	return kubectl("apply -f " + shellQuote(manifest))
}

// UntaintControlPlaneScript removes the control plane NoSchedule taints.
// Both the legacy and current taint keys are tried; a missing taint is not an error.
func UntaintControlPlaneScript() string {
	return script(
		kubectl("taint nodes --all node-role.kubernetes.io/master-")+" || true",
		kubectl("taint nodes --all node-role.kubernetes.io/control-plane-")+" || true",
	)
}

// PrintJoinCommandScript creates a bootstrap token with the given lifetime and
// prints the matching join command.
func PrintJoinCommandScript(ttl time.Duration) string {
	return fmt.Sprintf("kubeadm token create --print-join-command --ttl %s", ttl)
}

// ReadyzScript probes the API server readiness endpoint on the control plane.
func ReadyzScript() string {
	return kubectl("get --raw /readyz")
}

// IsInitializedScript succeeds when kubeadm init has completed on the node.
func IsInitializedScript() string {
	return "test -f " + AdminKubeconfig
}

// IsJoinedScript succeeds when the node holds a kubelet kubeconfig.
func IsJoinedScript() string {
	return "test -f " + KubeletKubeconfig
}

// ResetScript undoes a partial init or join so the next attempt starts clean.
func ResetScript() string {
	return "kubeadm reset --force"
}

// ReadAdminKubeconfigScript prints the admin kubeconfig.
func ReadAdminKubeconfigScript() string {
	return "cat " + AdminKubeconfig
}

// JoinScript renders a validated join command.
func JoinScript(cmd *JoinCommand) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	return cmd.String(), nil
}

func kubectl(args string) string {
	return "kubectl --kubeconfig=" + AdminKubeconfig + " " + args
}

func script(lines ...string) string {
	return "set -e\n" + strings.Join(lines, "\n")
}

// shellQuote wraps s in single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
