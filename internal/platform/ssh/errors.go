package ssh

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError reports a command that ran and exited unsuccessfully.
type CommandError struct {
	Host    string
	Command string
	Output  string
	// ExitCode is -1 when the command ended without an exit status.
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed on %s (exit %d): %v\nCommand: %s\nOutput: %s",
		e.Host, e.ExitCode, e.Err, e.Command, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code of a failed command. ok is false when err is
// not a *CommandError, e.g. the node could not be reached at all.
func ExitCode(err error) (code int, ok bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode, true
	}
	return 0, false
}

// Redact returns err with every occurrence of secret replaced by mask. A
// *CommandError keeps its type and exit code; any other error containing
// secret is reduced to its masked message.
func Redact(err error, secret, mask string) error {
	if err == nil || secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	if cmdErr, ok := err.(*CommandError); ok {
		redacted := *cmdErr
		redacted.Command = strings.ReplaceAll(cmdErr.Command, secret, mask)
		redacted.Output = strings.ReplaceAll(cmdErr.Output, secret, mask)
		if cmdErr.Err != nil && strings.Contains(cmdErr.Err.Error(), secret) {
			redacted.Err = errors.New(strings.ReplaceAll(cmdErr.Err.Error(), secret, mask))
		}
		return &redacted
	}
	return errors.New(strings.ReplaceAll(err.Error(), secret, mask))
}
