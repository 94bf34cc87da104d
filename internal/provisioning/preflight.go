package provisioning

import (
	"fmt"
	"os"
	"strings"

	"github.com/imamik/kubejoin/internal/kubeadm"
)

// Validation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a configuration validation error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// PreflightPhase checks the configuration and local prerequisites before
// any node is touched.
type PreflightPhase struct {
	// RequireSSHKey fails the phase when the SSH private key is unreadable.
	RequireSSHKey bool
}

// NewPreflightPhase creates a preflight phase.
func NewPreflightPhase(requireSSHKey bool) *PreflightPhase {
	return &PreflightPhase{RequireSSHKey: requireSSHKey}
}

// Name implements the Phase interface.
func (p *PreflightPhase) Name() string {
	return "preflight"
}

// Provision implements the Phase interface.
func (p *PreflightPhase) Provision(ctx *Context) error {
	var errs []ValidationError
	for _, ve := range p.check(ctx) {
		if ve.IsError() {
			errs = append(errs, ve)
			continue
		}
		ctx.Observer.Event(Event{
			Type:    EventValidationWarning,
			Phase:   p.Name(),
			Message: ve.Message,
			Fields:  map[string]string{"field": ve.Field},
		})
	}

	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("preflight validation failed:\n  %s", strings.Join(msgs, "\n  "))
	}

	ctx.Observer.Printf("[preflight] Validation passed")
	return nil
}

func (p *PreflightPhase) check(ctx *Context) []ValidationError {
	cfg := ctx.Config
	if cfg == nil {
		return []ValidationError{{Field: "config", Message: "configuration is required", Severity: SeverityError}}
	}

	var out []ValidationError
	if err := cfg.Validate(); err != nil {
		out = append(out, ValidationError{Field: "config", Message: err.Error(), Severity: SeverityError})
	}

	if p.RequireSSHKey {
		if _, err := os.Stat(cfg.SSH.PrivateKeyPath); err != nil {
			out = append(out, ValidationError{
				Field:    "ssh.private_key_path",
				Message:  fmt.Sprintf("private key not readable: %v", err),
				Severity: SeverityError,
			})
		}
	}

	if _, err := kubeadm.APIVersion(cfg.Kubernetes.Version); err != nil {
		out = append(out, ValidationError{
			Field:    "kubernetes.version",
			Message:  err.Error(),
			Severity: SeverityError,
		})
	} else if !strings.HasPrefix(cfg.Kubernetes.Version, "v") {
		out = append(out, ValidationError{
			Field:    "kubernetes.version",
			Message:  "version should start with 'v' (e.g., 'v1.21.2')",
			Severity: SeverityWarning,
		})
	}

	if n := len(cfg.Workers.Nodes); n < cfg.Workers.Min {
		out = append(out, ValidationError{
			Field:    "workers.nodes",
			Message:  fmt.Sprintf("%d workers configured, pool minimum is %d", n, cfg.Workers.Min),
			Severity: SeverityWarning,
		})
	}

	if ctx.Timeouts != nil && cfg.Kubernetes.TokenTTL > 0 && cfg.Kubernetes.TokenTTL < ctx.Timeouts.CredentialWait {
		out = append(out, ValidationError{
			Field: "kubernetes.token_ttl",
			Message: fmt.Sprintf("token_ttl %v is shorter than the credential wait %v; late workers may only see an expired credential",
				cfg.Kubernetes.TokenTTL, ctx.Timeouts.CredentialWait),
			Severity: SeverityWarning,
		})
	}

	return out
}
