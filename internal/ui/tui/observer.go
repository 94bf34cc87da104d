package tui

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/kubejoin/internal/provisioning"
)

// sender is the part of *tea.Program the observer needs.
type sender interface {
	Send(msg tea.Msg)
}

// Observer forwards coordinator events to a running program.
type Observer struct {
	program sender
	fields  map[string]string
}

// NewObserver creates an observer sending to p.
func NewObserver(p sender) *Observer {
	return &Observer{program: p, fields: map[string]string{}}
}

// Printf implements provisioning.Observer.
func (o *Observer) Printf(format string, v ...interface{}) {
	o.program.Send(LogMsg{Line: fmt.Sprintf(format, v...)})
}

// Event implements provisioning.Observer.
func (o *Observer) Event(event provisioning.Event) {
	switch event.Type {
	case provisioning.EventPhaseStarted:
		o.program.Send(PhaseMsg{Phase: event.Phase})
	case provisioning.EventPhaseCompleted:
		o.program.Send(PhaseMsg{Phase: event.Phase, Done: true})
	case provisioning.EventPhaseFailed:
		o.program.Send(PhaseMsg{Phase: event.Phase, Done: true, Err: errors.New(event.Message)})
	case provisioning.EventNodeState:
		o.program.Send(NodeStateMsg{Node: event.Node, State: event.Message})
	case provisioning.EventJoinAttempt:
		o.program.Send(JoinAttemptMsg{Node: event.Node, Message: event.Message})
	default:
		o.program.Send(LogMsg{Line: o.format(event)})
	}
}

// Progress implements provisioning.Observer.
func (o *Observer) Progress(phase string, current, total int) {
	o.program.Send(LogMsg{Line: fmt.Sprintf("[%s] %d/%d", phase, current, total)})
}

// WithFields implements provisioning.Observer.
func (o *Observer) WithFields(fields map[string]string) provisioning.Observer {
	merged := maps.Clone(o.fields)
	maps.Copy(merged, fields)
	return &Observer{program: o.program, fields: merged}
}

func (o *Observer) format(event provisioning.Event) string {
	parts := []string{}
	if event.Phase != "" {
		parts = append(parts, "["+event.Phase+"]")
	}
	if node := event.Node; node != "" {
		parts = append(parts, node+":")
	} else if node := o.fields["node"]; node != "" {
		parts = append(parts, node+":")
	}
	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+event.Fields[k])
		}
	}
	return strings.Join(parts, " ")
}
