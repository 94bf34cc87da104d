package testing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/platform/ssh"
)

// Default credentials issued by a FakeCluster.
const (
	FakeToken      = "abcdef.0123456789abcdef"
	FakeCACertHash = "sha256:8d1b5f0e2c9b4a7d6e3f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a2b1c0d"
)

// FakeCluster simulates kubeadm on a control plane and the nodes joining it.
// Nodes created from it share its state. Safe for concurrent use.
type FakeCluster struct {
	// ReadyAfter is the number of /readyz probes answered "not ready" after init.
	ReadyAfter int
	// Token and CACertHash are printed by "kubeadm token create" and
	// required by joins.
	Token      string
	CACertHash string

	endpoint string

	// mu also serializes joins, like the real control plane does.
	mu           sync.Mutex
	initialized  bool
	ready        bool
	readyzProbes int
	members      map[string]bool
	joinCalls    int
	transient    int
}

// NewFakeCluster creates an uninitialized control plane reachable at endpoint.
func NewFakeCluster(endpoint string) *FakeCluster {
	return &FakeCluster{
		Token:      FakeToken,
		CACertHash: FakeCACertHash,
		endpoint:   endpoint,
		members:    make(map[string]bool),
	}
}

// ControlPlane returns the runner of the control plane node.
func (f *FakeCluster) ControlPlane(name string) *FakeNode {
	return &FakeNode{name: name, cluster: f, controlPlane: true, failures: map[string]injectedFailure{}}
}

// Worker returns the runner of a worker node.
func (f *FakeCluster) Worker(name string) *FakeNode {
	return &FakeNode{name: name, cluster: f, failures: map[string]injectedFailure{}}
}

// SetInitialized marks the control plane as initialized and serving.
func (f *FakeCluster) SetInitialized() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	f.ready = true
}

// FailJoins makes the next n join attempts fail with a connection error.
func (f *FakeCluster) FailJoins(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transient = n
}

// Initialized reports whether kubeadm init ran.
func (f *FakeCluster) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

// Members returns the names of nodes that joined.
func (f *FakeCluster) Members() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.members))
	for name := range f.members {
		out = append(out, name)
	}
	return out
}

// JoinCalls returns the number of kubeadm join invocations.
func (f *FakeCluster) JoinCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joinCalls
}

// AdminKubeconfig returns the kubeconfig kubeadm init writes on the control plane.
func (f *FakeCluster) AdminKubeconfig() string {
	return fmt.Sprintf(`apiVersion: v1
kind: Config
clusters:
- name: kubernetes
  cluster:
    server: https://%s
contexts:
- name: kubernetes-admin@kubernetes
  context:
    cluster: kubernetes
    user: kubernetes-admin
current-context: kubernetes-admin@kubernetes
users:
- name: kubernetes-admin
  user:
    token: fake-admin-token
`, f.endpoint)
}

func (f *FakeCluster) initialize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
}

func (f *FakeCluster) readyz() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return false
	}
	f.readyzProbes++
	if f.readyzProbes > f.ReadyAfter {
		f.ready = true
	}
	return f.ready
}

func (f *FakeCluster) joinScript() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return "", false
	}
	return fmt.Sprintf("W0101 12:00:00.000000 1234 version.go:101] could not fetch a Kubernetes version from the internet\n"+
		"kubeadm join %s --token %s \\\n    --discovery-token-ca-cert-hash %s \n", f.endpoint, f.Token, f.CACertHash), true
}

// join handles "kubeadm join" from node and returns kubeadm's output.
func (f *FakeCluster) join(node string, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinCalls++

	cmd, err := kubeadm.ParseJoinCommand(command)
	if err != nil {
		return "", err
	}
	if !f.initialized || !f.ready || f.transient > 0 {
		if f.transient > 0 {
			f.transient--
		}
		return fmt.Sprintf("[preflight] Running pre-flight checks\nerror execution phase preflight: couldn't validate the identity of "+
			"the API Server: Get \"https://%s/api/v1/namespaces/kube-public/configmaps/cluster-info\": dial tcp %s: connect: connection refused",
			cmd.Endpoint, cmd.Endpoint), errors.New("connect: connection refused")
	}
	if cmd.Token != f.Token {
		id, _, _ := strings.Cut(cmd.Token, ".")
		return fmt.Sprintf("error execution phase preflight: couldn't validate the identity of the API Server: "+
			"could not find a JWS signature in the cluster-info ConfigMap for token ID %q", id), errors.New("exit status 1")
	}
	if !strings.EqualFold(cmd.CACertHash, f.CACertHash) {
		return fmt.Sprintf("error execution phase preflight: cluster CA found in cluster-info ConfigMap is invalid: "+
			"none of the public keys %q are pinned", f.CACertHash), errors.New("exit status 1")
	}
	f.members[node] = true
	return "This node has joined the cluster", nil
}

// FakeNode is a command runner backed by a FakeCluster.
type FakeNode struct {
	name         string
	cluster      *FakeCluster
	controlPlane bool

	mu       sync.Mutex
	commands []string
	joined   bool
	failures map[string]injectedFailure
	hook     func(command string)
}

type injectedFailure struct {
	err error
	// raw failures are returned as-is, as if the node could not be reached.
	raw bool
}

// Host implements the runner interface.
func (n *FakeNode) Host() string {
	return n.name
}

// FailOn makes every command containing substr exit with status 1 and err.
func (n *FakeNode) FailOn(substr string, err error) *FakeNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[substr] = injectedFailure{err: err}
	return n
}

// DisconnectOn makes every command containing substr fail with err without
// an exit status, like a connection failure.
func (n *FakeNode) DisconnectOn(substr string, err error) *FakeNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[substr] = injectedFailure{err: err, raw: true}
	return n
}

// Clear removes all injected failures.
func (n *FakeNode) Clear() *FakeNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = map[string]injectedFailure{}
	return n
}

// OnCommand registers a function called before each command runs.
func (n *FakeNode) OnCommand(fn func(command string)) *FakeNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hook = fn
	return n
}

// SetJoined marks the node as holding a kubelet kubeconfig.
func (n *FakeNode) SetJoined() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joined = true
	n.cluster.mu.Lock()
	n.cluster.members[n.name] = true
	n.cluster.mu.Unlock()
}

// Commands returns the commands executed so far.
func (n *FakeNode) Commands() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.commands...)
}

// CountCommands returns how many executed commands start with prefix.
func (n *FakeNode) CountCommands(prefix string) int {
	count := 0
	for _, c := range n.Commands() {
		if strings.HasPrefix(c, prefix) {
			count++
		}
	}
	return count
}

// Execute implements the runner interface.
func (n *FakeNode) Execute(ctx context.Context, command string) (string, error) {
	n.mu.Lock()
	n.commands = append(n.commands, command)
	hook := n.hook
	var injected *injectedFailure
	for substr, f := range n.failures {
		if strings.Contains(command, substr) {
			injected = &f
			break
		}
	}
	n.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if injected != nil {
		if injected.raw {
			return "", injected.err
		}
		return "", n.fail(command, "", 1, injected.err)
	}

	switch {
	case command == kubeadm.IsInitializedScript():
		if n.controlPlane && n.cluster.Initialized() {
			return "", nil
		}
		return "", n.fail(command, "", 1, errors.New("exit status 1"))

	case command == kubeadm.IsJoinedScript():
		n.mu.Lock()
		joined := n.joined
		n.mu.Unlock()
		if joined {
			return "", nil
		}
		return "", n.fail(command, "", 1, errors.New("exit status 1"))

	case strings.HasPrefix(command, "kubeadm init"):
		n.cluster.initialize()
		return "Your Kubernetes control-plane has initialized successfully!", nil

	case command == kubeadm.ReadyzScript():
		if n.cluster.readyz() {
			return "ok", nil
		}
		return "", n.fail(command, "The connection to the server was refused", 1, errors.New("exit status 1"))

	case strings.HasPrefix(command, "kubeadm token create"):
		script, ok := n.cluster.joinScript()
		if !ok {
			return "", n.fail(command, "failed to load admin kubeconfig", 1, errors.New("exit status 1"))
		}
		return script, nil

	case strings.HasPrefix(command, "kubeadm join"):
		n.mu.Lock()
		joined := n.joined
		n.mu.Unlock()
		if joined {
			out := "[ERROR FileAvailable--etc-kubernetes-kubelet.conf]: /etc/kubernetes/kubelet.conf already exists"
			return out, n.fail(command, out, 1, errors.New("exit status 1"))
		}
		out, err := n.cluster.join(n.name, command)
		if err != nil {
			return out, n.fail(command, out, 1, err)
		}
		n.mu.Lock()
		n.joined = true
		n.mu.Unlock()
		return out, nil

	case command == kubeadm.ReadAdminKubeconfigScript():
		if !n.controlPlane || !n.cluster.Initialized() {
			return "", n.fail(command, "cat: /etc/kubernetes/admin.conf: No such file or directory", 1, errors.New("exit status 1"))
		}
		return n.cluster.AdminKubeconfig(), nil

	case command == kubeadm.ResetScript():
		n.mu.Lock()
		n.joined = false
		n.mu.Unlock()
		return "[reset] Deleted contents of the etcd data directory", nil
	}

	return "", nil
}

func (n *FakeNode) fail(command, output string, code int, err error) error {
	return &ssh.CommandError{
		Host:     n.name,
		Command:  command,
		Output:   output,
		ExitCode: code,
		Err:      err,
	}
}
