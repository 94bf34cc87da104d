package bootstrap

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/imamik/kubejoin/internal/kubeadm"
	kjtest "github.com/imamik/kubejoin/internal/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredential(issued time.Time, ttl time.Duration) *JoinCredential {
	return NewJoinCredential(&kubeadm.JoinCommand{
		Endpoint:   "10.0.0.10:6443",
		Token:      kjtest.FakeToken,
		CACertHash: kjtest.FakeCACertHash,
	}, issued, ttl)
}

func TestNewJoinCredential(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cred := testCredential(issued, 24*time.Hour)

	require.NoError(t, cred.Validate())
	assert.NotEmpty(t, cred.ID)
	assert.Equal(t, issued, cred.IssuedAt)
	assert.Equal(t, issued.Add(24*time.Hour), cred.ExpiresAt)

	other := testCredential(issued, 24*time.Hour)
	assert.NotEqual(t, cred.ID, other.ID, "every credential is a new generation")
}

func TestJoinCredential_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cred := testCredential(issued, time.Hour)

	assert.False(t, cred.Expired(issued))
	assert.False(t, cred.Expired(cred.ExpiresAt.Add(-time.Nanosecond)))
	assert.True(t, cred.Expired(cred.ExpiresAt), "a credential is expired at its expiry instant")
	assert.True(t, cred.Expired(cred.ExpiresAt.Add(time.Second)))
}

func TestJoinCredential_Validate(t *testing.T) {
	t.Parallel()

	issued := time.Now()
	tests := []struct {
		name   string
		mutate func(*JoinCredential)
	}{
		{"missing id", func(c *JoinCredential) { c.ID = "" }},
		{"missing token", func(c *JoinCredential) { c.Token = "" }},
		{"missing hash", func(c *JoinCredential) { c.CACertHash = "" }},
		{"unpinned hash", func(c *JoinCredential) { c.CACertHash = "md5:abcd" }},
		{"shell metacharacters in token", func(c *JoinCredential) { c.Token = "abc;rm -rf /" }},
		{"missing endpoint port", func(c *JoinCredential) { c.Endpoint = "10.0.0.10" }},
		{"no validity window", func(c *JoinCredential) { c.ExpiresAt = time.Time{} }},
		{"expires before issue", func(c *JoinCredential) { c.ExpiresAt = c.IssuedAt.Add(-time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cred := testCredential(issued, time.Hour)
			tt.mutate(cred)
			assert.ErrorIs(t, cred.Validate(), ErrInvalidCredential)
		})
	}

	var nilCred *JoinCredential
	assert.ErrorIs(t, nilCred.Validate(), ErrInvalidCredential)
}

func TestJoinCredential_JoinCommand(t *testing.T) {
	t.Parallel()

	cred := testCredential(time.Now(), time.Hour)
	cmd := cred.JoinCommand("demo-worker-0")

	assert.Equal(t, "kubeadm join 10.0.0.10:6443 --token "+kjtest.FakeToken+
		" --discovery-token-ca-cert-hash "+kjtest.FakeCACertHash+" --node-name demo-worker-0", cmd.String())
}

func TestJoinCredential_StringRedactsToken(t *testing.T) {
	t.Parallel()

	cred := testCredential(time.Now(), time.Hour)
	s := cred.String()

	assert.NotContains(t, s, "0123456789abcdef")
	assert.Contains(t, s, "abcdef.****")
	assert.Contains(t, s, cred.ID)
}

func TestCredentialCodec(t *testing.T) {
	t.Parallel()

	cred := testCredential(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Hour)
	data, err := MarshalCredential(cred)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2026-03-01T13:00:00Z", raw["expiresAt"])

	decoded, err := UnmarshalCredential(data)
	require.NoError(t, err)
	assert.Equal(t, cred, decoded)

	_, err = UnmarshalCredential([]byte(`{"id":`))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = UnmarshalCredential([]byte(`{"id":"x","endpoint":"10.0.0.10:6443"}`))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	cred.Token = ""
	_, err = MarshalCredential(cred)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
