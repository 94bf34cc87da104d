package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/kubeadm"
	kjtest "github.com/imamik/kubejoin/internal/testing"
	"github.com/imamik/kubejoin/internal/util/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// initialized returns a harness whose control plane is up, plus its credential.
func initialized(t *testing.T, h *harness) *JoinCredential {
	t.Helper()
	node, _ := h.control()
	cred, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.NoError(t, err)
	return cred
}

func TestJoinWorker(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	cred := initialized(t, h)
	node, runner := h.worker("w0")

	require.NoError(t, h.coord.JoinWorker(kjtest.TestContext(t), node, cred))

	assert.Contains(t, h.cluster.Members(), "w0")
	assert.Equal(t, 1, runner.CountCommands("kubeadm join"))
	assert.Equal(t, 1, runner.CountCommands("set -e\nexport DEBIAN_FRONTEND"))
	assert.Equal(t, 1, runner.CountCommands("set -e\nufw allow 10250:10255/tcp"))
	assert.Zero(t, runner.CountCommands(kubeadm.ResetScript()))

	status, ok := h.coord.NodeStatus(node)
	require.True(t, ok)
	assert.Equal(t, StateJoined, status.State)
	assert.Equal(t, 1, status.Attempts)

	logs := h.logs.String()
	for _, state := range []NodeState{StateProvisioning, StateDependenciesInstalled, StateJoinRequested, StateJoined} {
		assert.Contains(t, logs, "node=w0 "+string(state))
	}
	assert.Contains(t, logs, "abcdef.****")
	assert.NotContains(t, logs, "0123456789abcdef")
}

func TestJoinWorker_AlreadyJoinedIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	cred := initialized(t, h)
	node, runner := h.worker("w0")
	ctx := kjtest.TestContext(t)

	require.NoError(t, h.coord.JoinWorker(ctx, node, cred))
	require.NoError(t, h.coord.JoinWorker(ctx, node, cred))
	require.NoError(t, h.coord.JoinWorker(ctx, node, cred))

	assert.Equal(t, 1, h.cluster.JoinCalls())
	assert.Equal(t, 1, runner.CountCommands("set -e\nexport DEBIAN_FRONTEND"))
	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoined, status.State)
}

func TestJoinWorker_AlreadyJoinedWithExpiredCredential(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	node, runner := h.worker("w0")
	runner.SetJoined()

	expired := testCredential(time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, h.coord.JoinWorker(kjtest.TestContext(t), node, expired))
	assert.Zero(t, h.cluster.JoinCalls())
}

func TestJoinWorker_ExpiredIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	h.cluster.SetInitialized()
	node, runner := h.worker("w0")

	expired := testCredential(time.Now().Add(-2*time.Hour), time.Hour)
	err := h.coord.JoinWorker(kjtest.TestContext(t), node, expired)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.True(t, retry.IsFatal(err))
	assert.Zero(t, h.cluster.JoinCalls(), "an expired credential is never used")
	assert.Zero(t, runner.CountCommands("set -e\nexport DEBIAN_FRONTEND"))

	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoinFailed, status.State)
}

func TestJoinWorker_ExpiresWhileRetrying(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	node, _ := h.worker("w0")

	// The control plane never comes up, so every attempt is transient.
	cred := testCredential(time.Now(), 60*time.Millisecond)
	start := time.Now()
	err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.True(t, retry.IsFatal(err))
	assert.Less(t, time.Since(start), 5*time.Second, "retries are bounded by the credential lifetime")
	assert.Greater(t, h.cluster.JoinCalls(), 1)
}

func TestJoinWorker_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	cred := initialized(t, h)
	h.cluster.FailJoins(3)
	node, runner := h.worker("w0")

	require.NoError(t, h.coord.JoinWorker(kjtest.TestContext(t), node, cred))

	assert.Equal(t, 4, h.cluster.JoinCalls())
	assert.Equal(t, 3, runner.CountCommands(kubeadm.ResetScript()), "node is reset before every retry")
	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoined, status.State)
	assert.Equal(t, 4, status.Attempts)
	assert.Contains(t, h.logs.String(), "join.attempt")
}

func TestJoinWorker_MaxAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().WithMaxAttempts(2).Build())
	cred := initialized(t, h)
	h.cluster.FailJoins(10)
	node, _ := h.worker("w0")

	err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
	require.Error(t, err)
	assert.False(t, retry.IsFatal(err), "exhausting the attempt cap is not an auth failure")
	assert.Equal(t, 2, h.cluster.JoinCalls())

	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoinFailed, status.State)
	assert.Contains(t, status.LastError, "connection refused")
}

func TestJoinWorker_AuthFailureIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*JoinCredential)
	}{
		{"wrong token", func(c *JoinCredential) { c.Token = "zzzzzz.0123456789abcdef" }},
		{"wrong CA pin", func(c *JoinCredential) { c.CACertHash = "sha256:" + fmt.Sprintf("%064d", 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, kjtest.NewConfigBuilder().Build())
			cred := initialized(t, h)
			tt.mutate(cred)
			node, runner := h.worker("w0")

			err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuth)
			assert.True(t, retry.IsFatal(err))
			assert.Equal(t, 1, h.cluster.JoinCalls(), "auth failures are never retried")
			assert.Zero(t, runner.CountCommands(kubeadm.ResetScript()))
		})
	}
}

func TestJoinWorker_TokenSecretIsMasked(t *testing.T) {
	t.Parallel()
	const secret = "0123456789abcdef"

	t.Run("transient failures", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, kjtest.NewConfigBuilder().WithMaxAttempts(2).Build())
		cred := initialized(t, h)
		h.cluster.FailJoins(10)
		node, _ := h.worker("w0")

		err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), secret)
		assert.Contains(t, err.Error(), "abcdef.****")

		status, _ := h.coord.NodeStatus(node)
		assert.NotEmpty(t, status.LastError)
		assert.NotContains(t, status.LastError, secret)
		assert.Contains(t, h.logs.String(), "join.attempt")
		assert.NotContains(t, h.logs.String(), secret)
	})

	t.Run("rejected token", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, kjtest.NewConfigBuilder().Build())
		cred := initialized(t, h)
		cred.Token = "zzzzzz." + secret
		node, _ := h.worker("w0")

		err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuth)
		assert.NotContains(t, err.Error(), secret)

		status, _ := h.coord.NodeStatus(node)
		assert.NotContains(t, status.LastError, secret)
		assert.NotContains(t, h.logs.String(), secret)
	})
}

func TestJoinWorker_DependencyFailureIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	cred := initialized(t, h)
	node, runner := h.worker("w0")
	runner.FailOn("apt-get install", errors.New("E: Unable to locate package kubeadm"))

	err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencies)
	assert.True(t, retry.IsFatal(err))
	assert.Zero(t, h.cluster.JoinCalls())

	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoinFailed, status.State)
}

func TestJoinWorker_Unreachable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	cred := initialized(t, h)
	node, runner := h.worker("w0")
	runner.DisconnectOn(kubeadm.IsJoinedScript(), errors.New("dial tcp 203.0.113.20:22: connect: no route to host"))

	err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
	require.Error(t, err)
	assert.False(t, IsFatal(err), "an unreachable worker can be retried later")
	assert.Zero(t, h.cluster.JoinCalls())
}

func TestJoinWorker_InvalidInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	ctx := context.Background()
	node, _ := h.worker("w0")

	assert.Error(t, h.coord.JoinWorker(ctx, node, nil))

	control, _ := h.control()
	assert.Error(t, h.coord.JoinWorker(ctx, control, testCredential(time.Now(), time.Hour)))

	noRunner := &ClusterNode{Name: "w1", Role: RoleWorker}
	assert.Error(t, h.coord.JoinWorker(ctx, noRunner, testCredential(time.Now(), time.Hour)))
}

func TestJoinWorker_ContextCancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	node, runner := h.worker("w0")
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the first join attempt was made against a control plane that is not up.
	runner.OnCommand(func(command string) {
		if strings.HasPrefix(command, "kubeadm join") {
			cancel()
		}
	})

	err := h.coord.JoinWorker(ctx, node, testCredential(time.Now(), time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	status, _ := h.coord.NodeStatus(node)
	assert.Equal(t, StateJoinFailed, status.State)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyCA(ctx context.Context, endpoint, pinned string) error {
	args := m.Called(ctx, endpoint, pinned)
	return args.Error(0)
}

func TestJoinWorker_CAVerifier(t *testing.T) {
	t.Parallel()

	t.Run("verified before joining", func(t *testing.T) {
		t.Parallel()
		verifier := &mockVerifier{}
		h := newHarness(t, kjtest.NewConfigBuilder().Build(), WithCAVerifier(verifier))
		cred := initialized(t, h)
		node, _ := h.worker("w0")

		verifier.On("VerifyCA", mock.Anything, "10.0.0.10:6443", kjtest.FakeCACertHash).Return(nil).Once()

		require.NoError(t, h.coord.JoinWorker(kjtest.TestContext(t), node, cred))
		verifier.AssertExpectations(t)
	})

	t.Run("mismatch is fatal", func(t *testing.T) {
		t.Parallel()
		verifier := &mockVerifier{}
		h := newHarness(t, kjtest.NewConfigBuilder().Build(), WithCAVerifier(verifier))
		cred := initialized(t, h)
		node, _ := h.worker("w0")

		verifier.On("VerifyCA", mock.Anything, mock.Anything, mock.Anything).
			Return(fmt.Errorf("cluster CA at 10.0.0.10:6443: %w", kubeadm.ErrCACertHashMismatch)).Once()

		err := h.coord.JoinWorker(kjtest.TestContext(t), node, cred)
		assert.ErrorIs(t, err, ErrAuth)
		assert.ErrorIs(t, err, kubeadm.ErrCACertHashMismatch)
		assert.Zero(t, h.cluster.JoinCalls(), "kubeadm join never runs against an unverified CA")
		verifier.AssertExpectations(t)
	})

	t.Run("unreachable is retried", func(t *testing.T) {
		t.Parallel()
		verifier := &mockVerifier{}
		h := newHarness(t, kjtest.NewConfigBuilder().Build(), WithCAVerifier(verifier))
		cred := initialized(t, h)
		node, _ := h.worker("w0")

		verifier.On("VerifyCA", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("connection refused")).Twice()
		verifier.On("VerifyCA", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, h.coord.JoinWorker(kjtest.TestContext(t), node, cred))
		assert.Equal(t, 1, h.cluster.JoinCalls())
		verifier.AssertExpectations(t)
	})
}

func TestAwaitCredential(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	ctx := kjtest.TestContext(t)
	cred := testCredential(time.Now(), time.Hour)

	var fetched atomic.Pointer[JoinCredential]
	done := make(chan error, 1)
	go func() {
		c, err := h.coord.AwaitCredential(ctx)
		fetched.Store(c)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := h.coord.PublishCredential(ctx, cred)
	require.NoError(t, err)

	require.NoError(t, <-done)
	assert.Equal(t, cred.ID, fetched.Load().ID)
}

func TestAwaitCredential_Timeout(t *testing.T) {
	t.Parallel()
	timeouts := kjtest.FastTimeouts()
	timeouts.CredentialWait = 30 * time.Millisecond
	h := newHarness(t, kjtest.NewConfigBuilder().Build(), WithTimeouts(timeouts))

	_, err := h.coord.AwaitCredential(kjtest.TestContext(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, credstore.ErrNotPublished)
	assert.ErrorIs(t, err, retry.ErrDeadlineExceeded)
}

func TestAwaitCredential_SkipsExpired(t *testing.T) {
	t.Parallel()
	timeouts := kjtest.FastTimeouts()
	timeouts.CredentialWait = 30 * time.Millisecond
	h := newHarness(t, kjtest.NewConfigBuilder().Build(), WithTimeouts(timeouts))
	ctx := kjtest.TestContext(t)

	stale := testCredential(time.Now().Add(-2*time.Hour), time.Hour)
	data, err := MarshalCredential(stale)
	require.NoError(t, err)
	require.NoError(t, h.store.Publish(ctx, h.coord.CredentialKey(), data))

	_, err = h.coord.AwaitCredential(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrDeadlineExceeded)
}

func TestAwaitCredential_Corrupt(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	ctx := kjtest.TestContext(t)
	require.NoError(t, h.store.Publish(ctx, h.coord.CredentialKey(), []byte("not json")))

	_, err := h.coord.AwaitCredential(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.True(t, retry.IsFatal(err))
}

func TestJoin_WaitsForCredential(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	ctx := kjtest.TestContext(t)
	node, _ := h.worker("w0")

	done := make(chan error, 1)
	go func() { done <- h.coord.Join(ctx, node) }()

	cred := initialized(t, h)
	_, err := h.coord.PublishCredential(ctx, cred)
	require.NoError(t, err)

	require.NoError(t, <-done)
	assert.Contains(t, h.cluster.Members(), "w0")
}
