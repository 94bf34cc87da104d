package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	ControlPlaneInit  time.Duration // Upper bound for the whole control plane sequence
	APIReady          time.Duration // Waiting for the API server to report /readyz
	APIReadyPoll      time.Duration // Interval between readiness probes
	CredentialWait    time.Duration // Worker wait for a published credential
	SSHDial           time.Duration // SSH TCP dial timeout
	SSHMaxRetries     int           // SSH connection retries
	RetryInitialDelay time.Duration // First join retry delay
	RetryMaxDelay     time.Duration // Cap on join retry delay
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - KUBEJOIN_TIMEOUT_CONTROL_PLANE (default: 20m)
//   - KUBEJOIN_TIMEOUT_API_READY (default: 5m)
//   - KUBEJOIN_API_READY_POLL (default: 5s)
//   - KUBEJOIN_TIMEOUT_CREDENTIAL_WAIT (default: 30m)
//   - KUBEJOIN_TIMEOUT_SSH_DIAL (default: 10s)
//   - KUBEJOIN_SSH_MAX_RETRIES (default: 30)
//   - KUBEJOIN_RETRY_INITIAL_DELAY (default: 2s)
//   - KUBEJOIN_RETRY_MAX_DELAY (default: 30s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ControlPlaneInit:  parseDuration("KUBEJOIN_TIMEOUT_CONTROL_PLANE", 20*time.Minute),
		APIReady:          parseDuration("KUBEJOIN_TIMEOUT_API_READY", 5*time.Minute),
		APIReadyPoll:      parseDuration("KUBEJOIN_API_READY_POLL", 5*time.Second),
		CredentialWait:    parseDuration("KUBEJOIN_TIMEOUT_CREDENTIAL_WAIT", 30*time.Minute),
		SSHDial:           parseDuration("KUBEJOIN_TIMEOUT_SSH_DIAL", 10*time.Second),
		SSHMaxRetries:     parseInt("KUBEJOIN_SSH_MAX_RETRIES", 30),
		RetryInitialDelay: parseDuration("KUBEJOIN_RETRY_INITIAL_DELAY", 2*time.Second),
		RetryMaxDelay:     parseDuration("KUBEJOIN_RETRY_MAX_DELAY", 30*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
