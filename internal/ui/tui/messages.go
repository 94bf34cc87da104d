// Package tui provides a Bubble Tea dashboard for a running bootstrap.
package tui

// PhaseMsg reports progress of a control plane phase.
type PhaseMsg struct {
	Phase string
	Done  bool
	Err   error
}

// NodeStateMsg reports a node state transition.
type NodeStateMsg struct {
	Node  string
	State string
}

// JoinAttemptMsg reports a failed join attempt that will be retried.
type JoinAttemptMsg struct {
	Node    string
	Message string
}

// LogMsg carries a free-form log line.
type LogMsg struct {
	Line string
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the operation is complete.
type DoneMsg struct{}
