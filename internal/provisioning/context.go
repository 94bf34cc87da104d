package provisioning

import (
	"context"
	"time"

	"github.com/imamik/kubejoin/internal/config"
)

// State holds the shared results of control plane phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	InitConfig []byte // Rendered kubeadm configuration
	JoinScript string // Output of kubeadm token create --print-join-command
	IssuedAt   time.Time
}

// NewState creates an empty state.
func NewState() *State {
	return &State{}
}

// Context wraps all dependencies and state needed for a phase.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a new phase context logging to the console.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer) *Context {
	if observer == nil {
		observer = NewConsoleObserver()
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    NewState(),
		Observer: observer,
		Timeouts: config.LoadTimeouts(),
	}
}

// WithContext returns a shallow copy of c bound to ctx. State is shared.
func (c *Context) WithContext(ctx context.Context) *Context {
	copied := *c
	copied.Context = ctx
	return &copied
}
