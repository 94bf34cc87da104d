package testing

import (
	"context"
	"testing"
	"time"

	"github.com/imamik/kubejoin/internal/config"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FastTimeouts returns timeouts small enough for retry loops in unit tests.
func FastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		ControlPlaneInit:  10 * time.Second,
		APIReady:          2 * time.Second,
		APIReadyPoll:      time.Millisecond,
		CredentialWait:    2 * time.Second,
		SSHDial:           time.Second,
		SSHMaxRetries:     1,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}
}
