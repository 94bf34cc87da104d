package bootstrap

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// NodeState is a node's position in the bootstrap state machine.
type NodeState string

// Worker states.
const (
	StateProvisioning          NodeState = "Provisioning"
	StateDependenciesInstalled NodeState = "DependenciesInstalled"
	StateJoinRequested         NodeState = "JoinRequested"
	StateJoined                NodeState = "Joined"
	StateJoinFailed            NodeState = "JoinFailed"
)

// Control plane states.
const (
	StateInitialized NodeState = "Initialized"
	StateInitFailed  NodeState = "InitFailed"
)

// allowedTransitions lists the legal successors of each state. Any state may
// restart at Provisioning.
var allowedTransitions = map[NodeState][]NodeState{
	"":                         {StateProvisioning},
	StateProvisioning:          {StateDependenciesInstalled, StateJoined, StateJoinFailed, StateInitialized, StateInitFailed},
	StateDependenciesInstalled: {StateJoinRequested, StateJoinFailed},
	StateJoinRequested:         {StateJoined, StateJoinFailed},
	StateJoined:                {},
	StateJoinFailed:            {},
	StateInitialized:           {},
	StateInitFailed:            {},
}

func validTransition(from, to NodeState) bool {
	if to == StateProvisioning {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NodeStatus is the externally visible bootstrap state of one node.
type NodeStatus struct {
	ID        string
	Node      string
	Role      Role
	State     NodeState
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// Terminal reports whether no further transitions are expected.
func (s NodeStatus) Terminal() bool {
	switch s.State {
	case StateJoined, StateJoinFailed, StateInitialized, StateInitFailed:
		return true
	}
	return false
}

// Registry tracks node states. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*NodeStatus
	now   func() time.Time

	// onTransition is called with the lock released.
	onTransition func(role Role, from, to NodeState)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*NodeStatus),
		now:   time.Now,
	}
}

// Transition moves node to state. Illegal transitions are rejected.
func (r *Registry) Transition(node *ClusterNode, state NodeState) error {
	r.mu.Lock()
	status := r.ensure(node)
	from := status.State
	if !validTransition(from, state) {
		r.mu.Unlock()
		return fmt.Errorf("node %s: illegal transition %s -> %s", node.Name, displayState(from), state)
	}
	if state == StateProvisioning {
		status.Attempts = 0
		status.LastError = ""
	}
	status.State = state
	status.UpdatedAt = r.now()
	hook := r.onTransition
	r.mu.Unlock()

	if hook != nil {
		hook(node.Role, from, state)
	}
	return nil
}

// Fail moves node to the failure state for its role and records err.
// Failure is accepted from any state.
func (r *Registry) Fail(node *ClusterNode, err error) {
	state := StateJoinFailed
	if node.Role == RoleControlPlane {
		state = StateInitFailed
	}

	r.mu.Lock()
	status := r.ensure(node)
	from := status.State
	status.State = state
	if err != nil {
		status.LastError = err.Error()
	}
	status.UpdatedAt = r.now()
	hook := r.onTransition
	r.mu.Unlock()

	if hook != nil && from != state {
		hook(node.Role, from, state)
	}
}

// ensure returns the status for node, creating it. Callers hold mu.
func (r *Registry) ensure(node *ClusterNode) *NodeStatus {
	status, ok := r.nodes[node.Key()]
	if !ok {
		status = &NodeStatus{ID: node.Key(), Node: node.Name, Role: node.Role}
		r.nodes[node.Key()] = status
	}
	return status
}

// RecordAttempt counts a join attempt and remembers its error, if any.
func (r *Registry) RecordAttempt(node *ClusterNode, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.nodes[node.Key()]
	if !ok {
		return
	}
	status.Attempts++
	if err != nil {
		status.LastError = err.Error()
	}
	status.UpdatedAt = r.now()
}

// SetLastError records err without changing state.
func (r *Registry) SetLastError(node *ClusterNode, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status, ok := r.nodes[node.Key()]; ok && err != nil {
		status.LastError = err.Error()
		status.UpdatedAt = r.now()
	}
}

// Get returns a copy of one node's status.
func (r *Registry) Get(id string) (NodeStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.nodes[id]
	if !ok {
		return NodeStatus{}, false
	}
	return *status, true
}

// Snapshot returns copies of all statuses, control plane first, then by name.
func (r *Registry) Snapshot() []NodeStatus {
	r.mu.RLock()
	out := make([]NodeStatus, 0, len(r.nodes))
	for _, status := range r.nodes {
		out = append(out, *status)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role == RoleControlPlane
		}
		return out[i].Node < out[j].Node
	})
	return out
}

func displayState(s NodeState) string {
	if s == "" {
		return "<none>"
	}
	return string(s)
}
