package provisioning

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Logger is the minimal logging surface shared by phases and the coordinator.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the interface for structured observability during bootstrap.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured bootstrap event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "kubeadm-init", "join")
	Message   string            // Human-readable message
	Node      string            // Node name if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of bootstrap event.
type EventType string

const (
	// EventPhaseStarted indicates a phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventNodeState indicates a node moved to a new bootstrap state.
	EventNodeState EventType = "node.state"
	// EventJoinAttempt indicates a join attempt failed and will be retried.
	EventJoinAttempt EventType = "join.attempt"

	// EventCredentialPublished indicates a join credential was published.
	EventCredentialPublished EventType = "credential.published"
	// EventCredentialRevoked indicates a previously published credential was removed.
	EventCredentialRevoked EventType = "credential.revoked"

	// EventValidationWarning indicates a validation warning.
	EventValidationWarning EventType = "validation.warning"
	// EventValidationError indicates a validation error.
	EventValidationError EventType = "validation.error"

	// EventProgress indicates progress in a long-running operation.
	EventProgress EventType = "progress"
)

// ConsoleObserver implements Observer using standard log package.
type ConsoleObserver struct {
	logger        *log.Logger
	contextFields map[string]string
}

// NewConsoleObserver creates a new console-based observer writing to the
// standard logger.
func NewConsoleObserver() *ConsoleObserver {
	return NewConsoleObserverWithLogger(log.Default())
}

// NewConsoleObserverWithLogger creates a console observer writing to logger.
func NewConsoleObserverWithLogger(logger *log.Logger) *ConsoleObserver {
	return &ConsoleObserver{
		logger:        logger,
		contextFields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.logger.Printf(format, v...)
}

// Event implements Observer interface.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	o.logger.Print(formatEvent(mergeFields(event, o.contextFields)))
}

// Progress implements Observer interface.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	if total == 0 {
		o.logger.Printf("[%s] Progress: %d/%d", phase, current, total)
		return
	}
	percentage := (current * 100) / total
	o.logger.Printf("[%s] Progress: %d/%d (%d%%)", phase, current, total, percentage)
}

// WithFields implements Observer interface.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &ConsoleObserver{
		logger:        o.logger,
		contextFields: newFields,
	}
}

// mergeFields returns event with context fields added where the event does
// not set them itself. The event's own map is not modified.
func mergeFields(event Event, context map[string]string) Event {
	if len(context) == 0 {
		return event
	}
	merged := make(map[string]string, len(event.Fields)+len(context))
	for k, v := range context {
		merged[k] = v
	}
	for k, v := range event.Fields {
		merged[k] = v
	}
	event.Fields = merged
	return event
}

// formatEvent formats an event for console output.
func formatEvent(event Event) string {
	parts := []string{string(event.Type)}

	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	if event.Node != "" {
		parts = append(parts, fmt.Sprintf("node=%s", event.Node))
	}

	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, event.Fields[k]))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}

// LogrObserver adapts a logr.Logger to Observer for callers embedding the
// coordinator as a library.
type LogrObserver struct {
	logger logr.Logger
}

// NewLogrObserver wraps logger.
func NewLogrObserver(logger logr.Logger) *LogrObserver {
	return &LogrObserver{logger: logger}
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.logger.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer. Failure events are logged as errors.
func (o *LogrObserver) Event(event Event) {
	kv := []interface{}{"type", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Node != "" {
		kv = append(kv, "node", event.Node)
	}

	keys := make([]string, 0, len(event.Fields))
	for k := range event.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, event.Fields[k])
	}

	switch event.Type {
	case EventPhaseFailed, EventValidationError:
		o.logger.Error(nil, event.Message, kv...)
	default:
		o.logger.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.logger.V(1).Info("progress", "phase", phase, "current", current, "total", total)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return &LogrObserver{logger: o.logger.WithValues(kv...)}
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogNodeState logs a node state transition.
func LogNodeState(observer Observer, node, state string) {
	observer.Event(Event{
		Type:    EventNodeState,
		Phase:   "join",
		Node:    node,
		Message: state,
	})
}

// LogJoinAttempt logs a failed join attempt that will be retried after delay.
func LogJoinAttempt(observer Observer, node string, attempt int, err error, delay time.Duration) {
	observer.Event(Event{
		Type:    EventJoinAttempt,
		Phase:   "join",
		Node:    node,
		Message: fmt.Sprintf("attempt %d failed: %v", attempt, err),
		Fields: map[string]string{
			"retry_in": delay.Round(time.Millisecond).String(),
		},
	})
}

// LogCredentialPublished logs a published credential. Only the generation
// and location are recorded, never the token.
func LogCredentialPublished(observer Observer, id, ref string, expiresAt time.Time) {
	observer.Event(Event{
		Type:    EventCredentialPublished,
		Phase:   "publish",
		Message: "join credential published",
		Fields: map[string]string{
			"id":      id,
			"ref":     ref,
			"expires": expiresAt.UTC().Format(time.RFC3339),
		},
	})
}

// LogCredentialRevoked logs the removal of a previously published credential.
func LogCredentialRevoked(observer Observer, ref string) {
	observer.Event(Event{
		Type:    EventCredentialRevoked,
		Phase:   "publish",
		Message: "previous join credential revoked",
		Fields: map[string]string{
			"ref": ref,
		},
	})
}
