package ssh

import (
	"context"
	"errors"
	"os/exec"
)

// LocalRunner executes commands through the shell of the current host.
type LocalRunner struct {
	// Shell defaults to /bin/sh.
	Shell string
}

// Host returns "localhost".
func (LocalRunner) Host() string {
	return "localhost"
}

// Execute runs command via "<shell> -c" and returns its combined output.
func (r LocalRunner) Execute(ctx context.Context, command string) (string, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	// #nosec G204 -- commands are rendered from validated values
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return string(output), ctx.Err()
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return string(output), &CommandError{
			Host:     r.Host(),
			Command:  command,
			Output:   string(output),
			ExitCode: exitCode,
			Err:      err,
		}
	}
	return string(output), nil
}
