package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/kubeadm"
	kjtest "github.com/imamik/kubejoin/internal/testing"
	"github.com/imamik/kubejoin/internal/util/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeControlPlane(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().WithClusterName("demo").Build()
	h := newHarness(t, cfg)
	h.cluster.ReadyAfter = 3
	node, runner := h.control()

	before := time.Now()
	cred, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.NoError(t, err)

	assert.Equal(t, kjtest.FakeToken, cred.Token)
	assert.Equal(t, kjtest.FakeCACertHash, cred.CACertHash)
	assert.Equal(t, "10.0.0.10:6443", cred.Endpoint)
	assert.False(t, cred.IssuedAt.Before(before.Truncate(time.Second)))
	assert.Equal(t, cfg.Kubernetes.TokenTTL, cred.ExpiresAt.Sub(cred.IssuedAt))
	assert.True(t, h.cluster.Initialized())

	commands := runner.Commands()
	order := []string{
		kubeadm.IsInitializedScript(),
		"set -e\nexport DEBIAN_FRONTEND=noninteractive",
		"set -e\nufw allow 6443/tcp",
		"echo ",
		"kubeadm init --config=",
		kubeadm.ReadyzScript(),
		kubeadm.ApplyManifestScript(cfg.Kubernetes.CNIManifest),
		kubeadm.UntaintControlPlaneScript(),
		"kubeadm token create --print-join-command --ttl 24h0m0s",
	}
	idx := 0
	for _, c := range commands {
		if idx < len(order) && strings.HasPrefix(c, order[idx]) {
			idx++
		}
	}
	assert.Equal(t, len(order), idx, "commands out of order: %q", commands)
	assert.Equal(t, 4, runner.CountCommands(kubeadm.ReadyzScript()), "readiness is polled until ok")

	status, ok := h.coord.NodeStatus(node)
	require.True(t, ok)
	assert.Equal(t, StateInitialized, status.State)

	_, err = h.store.Fetch(context.Background(), h.coord.CredentialKey())
	assert.ErrorIs(t, err, credstore.ErrNotPublished, "initialization alone publishes nothing")
	assert.NotContains(t, h.logs.String(), "0123456789abcdef", "token secret must never be logged")
}

func TestInitializeControlPlane_NoUntaint(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().WithUntaint(false).Build()
	h := newHarness(t, cfg)
	node, runner := h.control()

	_, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.NoError(t, err)
	assert.Zero(t, runner.CountCommands(kubeadm.UntaintControlPlaneScript()))
}

func TestInitializeControlPlane_KubeadmConfig(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().Build()
	h := newHarness(t, cfg)
	node, runner := h.control()

	_, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.NoError(t, err)

	want, err := h.coord.clusterConfig(node).RenderInitConfig()
	require.NoError(t, err)
	assert.Contains(t, runner.Commands(), kubeadm.WriteFileScript(kubeadm.InitConfigPath, want))
	assert.Contains(t, string(want), "podSubnet: 192.168.0.0/16")
	assert.Contains(t, string(want), "- 203.0.113.10")
}

func TestInitializeControlPlane_FailureIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failOn  string
		wantErr error
	}{
		{name: "dependencies", failOn: "apt-get install", wantErr: ErrDependencies},
		{name: "kubeadm init", failOn: "kubeadm init"},
		{name: "cni", failOn: "apply -f"},
		{name: "token", failOn: "kubeadm token create"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := kjtest.NewConfigBuilder().Build()
			h := newHarness(t, cfg)
			node, runner := h.control()
			runner.FailOn(tt.failOn, errors.New("exit status 1"))

			cred, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
			require.Error(t, err)
			assert.Nil(t, cred)
			assert.True(t, retry.IsFatal(err))
			assert.ErrorIs(t, err, ErrControlPlaneInit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			status, _ := h.coord.NodeStatus(node)
			assert.Equal(t, StateInitFailed, status.State)
			assert.NotEmpty(t, status.LastError)
		})
	}
}

func TestInitializeControlPlane_APINeverReady(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().Build()
	timeouts := kjtest.FastTimeouts()
	timeouts.APIReady = 30 * time.Millisecond
	h := newHarness(t, cfg, WithTimeouts(timeouts))
	h.cluster.ReadyAfter = 1 << 30
	node, runner := h.control()

	_, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlPlaneInit)
	assert.ErrorIs(t, err, retry.ErrDeadlineExceeded)
	assert.Zero(t, runner.CountCommands("kubeadm token create"))
}

func TestInitializeControlPlane_Unreachable(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().Build()
	h := newHarness(t, cfg)
	node, runner := h.control()
	runner.DisconnectOn(kubeadm.IsInitializedScript(), errors.New("dial tcp: i/o timeout"))

	_, err := h.coord.InitializeControlPlane(kjtest.TestContext(t), node)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlPlaneInit)
	assert.Zero(t, runner.CountCommands("kubeadm init"))
}

func TestInitializeControlPlane_AlreadyInitialized(t *testing.T) {
	t.Parallel()
	ctx := kjtest.TestContext(t)

	t.Run("valid credential is reused", func(t *testing.T) {
		t.Parallel()
		cfg := kjtest.NewConfigBuilder().Build()
		h := newHarness(t, cfg)
		node, runner := h.control()

		first, err := h.coord.InitializeControlPlane(ctx, node)
		require.NoError(t, err)
		_, err = h.coord.PublishCredential(ctx, first)
		require.NoError(t, err)

		second, err := h.coord.InitializeControlPlane(ctx, node)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, runner.CountCommands("kubeadm init"))
	})

	t.Run("nothing published issues a new credential", func(t *testing.T) {
		t.Parallel()
		cfg := kjtest.NewConfigBuilder().Build()
		h := newHarness(t, cfg)
		h.cluster.SetInitialized()
		node, runner := h.control()

		cred, err := h.coord.InitializeControlPlane(ctx, node)
		require.NoError(t, err)
		require.NoError(t, cred.Validate())
		assert.Zero(t, runner.CountCommands("kubeadm init"))
		assert.Equal(t, 1, runner.CountCommands("kubeadm token create"))
		assert.Contains(t, h.logs.String(), "no credential published, issuing a new one")
	})

	t.Run("expired credential is replaced", func(t *testing.T) {
		t.Parallel()
		cfg := kjtest.NewConfigBuilder().Build()
		h := newHarness(t, cfg)
		h.cluster.SetInitialized()
		node, runner := h.control()

		stale := testCredential(time.Now().Add(-2*time.Hour), time.Hour)
		data, err := MarshalCredential(stale)
		require.NoError(t, err)
		require.NoError(t, h.store.Publish(ctx, h.coord.CredentialKey(), data))

		cred, err := h.coord.InitializeControlPlane(ctx, node)
		require.NoError(t, err)
		assert.NotEqual(t, stale.ID, cred.ID)
		assert.False(t, cred.Expired(time.Now()))
		assert.Zero(t, runner.CountCommands("kubeadm init"))

		_, err = h.store.Fetch(ctx, h.coord.CredentialKey())
		assert.ErrorIs(t, err, credstore.ErrNotPublished, "the expired credential is revoked")
	})

	t.Run("corrupt credential is replaced", func(t *testing.T) {
		t.Parallel()
		cfg := kjtest.NewConfigBuilder().Build()
		h := newHarness(t, cfg)
		h.cluster.SetInitialized()
		node, _ := h.control()
		require.NoError(t, h.store.Publish(ctx, h.coord.CredentialKey(), []byte("{not json")))

		cred, err := h.coord.InitializeControlPlane(ctx, node)
		require.NoError(t, err)
		require.NoError(t, cred.Validate())
	})
}

func TestInitializeControlPlane_RecoversAfterPartialInit(t *testing.T) {
	t.Parallel()
	ctx := kjtest.TestContext(t)
	cfg := kjtest.NewConfigBuilder().Build()
	h := newHarness(t, cfg)
	node, runner := h.control()

	runner.FailOn("kubeadm token create", errors.New("exit status 1"))
	_, err := h.coord.InitializeControlPlane(ctx, node)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrControlPlaneInit)
	assert.True(t, h.cluster.Initialized())

	runner.Clear()
	cred, err := h.coord.InitializeControlPlane(ctx, node)
	require.NoError(t, err)
	require.NoError(t, cred.Validate())
	assert.Equal(t, 1, runner.CountCommands("kubeadm init"), "kubeadm init is not repeated")

	_, err = h.coord.PublishCredential(ctx, cred)
	require.NoError(t, err)
}

func TestInitializeControlPlane_RevokesPrevious(t *testing.T) {
	t.Parallel()
	ctx := kjtest.TestContext(t)
	cfg := kjtest.NewConfigBuilder().Build()
	h := newHarness(t, cfg)
	node, _ := h.control()

	old := testCredential(time.Now(), time.Hour)
	_, err := h.coord.PublishCredential(ctx, old)
	require.NoError(t, err)

	_, err = h.coord.InitializeControlPlane(ctx, node)
	require.NoError(t, err)

	_, err = h.store.Fetch(ctx, h.coord.CredentialKey())
	assert.ErrorIs(t, err, credstore.ErrNotPublished)
	assert.Contains(t, h.logs.String(), "credential.revoked")
}

func TestInitializeControlPlane_WrongRole(t *testing.T) {
	t.Parallel()
	cfg := kjtest.NewConfigBuilder().Build()
	h := newHarness(t, cfg)
	node, _ := h.worker("w0")

	_, err := h.coord.InitializeControlPlane(context.Background(), node)
	assert.ErrorIs(t, err, ErrControlPlaneInit)
}

func TestPublishCredential(t *testing.T) {
	t.Parallel()
	ctx := kjtest.TestContext(t)
	cfg := kjtest.NewConfigBuilder().WithClusterName("demo").Build()
	h := newHarness(t, cfg)

	cred := testCredential(time.Now(), time.Hour)
	ref, err := h.coord.PublishCredential(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, "memory://demo/join-credential.json", ref)
	assert.Equal(t, ref, h.coord.CredentialRef())

	data, err := h.store.Fetch(ctx, h.coord.CredentialKey())
	require.NoError(t, err)
	stored, err := UnmarshalCredential(data)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, stored.ID)

	logs := h.logs.String()
	assert.Contains(t, logs, "credential.published")
	assert.Contains(t, logs, cred.ID)
	assert.NotContains(t, logs, "0123456789abcdef")
}

func TestPublishCredential_Rejects(t *testing.T) {
	t.Parallel()
	ctx := kjtest.TestContext(t)
	h := newHarness(t, kjtest.NewConfigBuilder().Build())

	expired := testCredential(time.Now().Add(-2*time.Hour), time.Hour)
	_, err := h.coord.PublishCredential(ctx, expired)
	assert.ErrorIs(t, err, ErrCredentialExpired)

	invalid := testCredential(time.Now(), time.Hour)
	invalid.CACertHash = ""
	_, err = h.coord.PublishCredential(ctx, invalid)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = h.store.Fetch(ctx, h.coord.CredentialKey())
	assert.ErrorIs(t, err, credstore.ErrNotPublished)
}

func TestAdminKubeconfig(t *testing.T) {
	t.Parallel()
	h := newHarness(t, kjtest.NewConfigBuilder().Build())
	node, _ := h.control()
	ctx := kjtest.TestContext(t)

	_, err := h.coord.AdminKubeconfig(ctx, node)
	require.Error(t, err, "nothing to read before init")

	_, err = h.coord.InitializeControlPlane(ctx, node)
	require.NoError(t, err)

	data, err := h.coord.AdminKubeconfig(ctx, node)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server: https://10.0.0.10:6443")

	worker, _ := h.worker("w0")
	_, err = h.coord.AdminKubeconfig(ctx, worker)
	assert.Error(t, err)
}
