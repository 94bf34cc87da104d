package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/util/retry"
)

// Errors returned by the coordinator. Fatal errors are additionally wrapped
// with retry.Fatal so callers can tell them apart with retry.IsFatal.
var (
	ErrControlPlaneInit  = errors.New("control plane initialization failed")
	ErrCredentialExpired = errors.New("join credential expired")
	ErrAuth              = errors.New("join authentication failed")
	ErrDependencies      = errors.New("dependency installation failed")
)

// authFailureMarkers are kubeadm join outputs meaning the credential itself
// was rejected. Retrying with the same credential cannot succeed.
var authFailureMarkers = []string{
	"none of the public keys",
	"unauthorized",
	"invalid bootstrap token",
	"could not find a jws signature",
	"failed to verify jws",
}

// isAuthFailure reports whether kubeadm output indicates a rejected token or CA pin.
func isAuthFailure(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range authFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classifyJoinError maps a failed join attempt to fatal or transient.
func classifyJoinError(output string, err error) error {
	if errors.Is(err, kubeadm.ErrCACertHashMismatch) {
		return retry.Fatal(fmt.Errorf("%w: %w", ErrAuth, err))
	}
	if isAuthFailure(output) || isAuthFailure(err.Error()) {
		return retry.Fatal(fmt.Errorf("%w: %w", ErrAuth, err))
	}
	return err
}

// IsFatal reports whether err must not be retried by callers.
func IsFatal(err error) bool {
	return retry.IsFatal(err) ||
		errors.Is(err, ErrControlPlaneInit) ||
		errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrDependencies)
}
