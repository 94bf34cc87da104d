package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/kubejoin/internal/kubeadm"

	"github.com/google/uuid"
)

// ErrInvalidCredential is returned for credentials that are incomplete or malformed.
var ErrInvalidCredential = errors.New("invalid join credential")

// JoinCredential is what a worker needs to join the control plane. It is
// produced once per control plane initialization and never modified.
type JoinCredential struct {
	// ID identifies the generation; a new initialization issues a new ID.
	ID string `json:"id"`
	// Endpoint is the control plane API address as host:port.
	Endpoint   string    `json:"endpoint"`
	Token      string    `json:"token"`
	CACertHash string    `json:"caCertHash"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// NewJoinCredential builds a credential from a parsed join command.
func NewJoinCredential(cmd *kubeadm.JoinCommand, issuedAt time.Time, ttl time.Duration) *JoinCredential {
	return &JoinCredential{
		ID:         uuid.NewString(),
		Endpoint:   cmd.Endpoint,
		Token:      cmd.Token,
		CACertHash: cmd.CACertHash,
		IssuedAt:   issuedAt.UTC(),
		ExpiresAt:  issuedAt.Add(ttl).UTC(),
	}
}

// Validate checks that every field is present and the join command it renders is valid.
func (c *JoinCredential) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil", ErrInvalidCredential)
	}
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCredential)
	}
	if c.IssuedAt.IsZero() || c.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing validity window", ErrInvalidCredential)
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return fmt.Errorf("%w: expires before it was issued", ErrInvalidCredential)
	}
	if err := c.JoinCommand("").Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return nil
}

// Expired reports whether the credential can no longer be used at now.
func (c *JoinCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// JoinCommand renders the membership request for the named node.
func (c *JoinCredential) JoinCommand(nodeName string) *kubeadm.JoinCommand {
	return &kubeadm.JoinCommand{
		Endpoint:   c.Endpoint,
		Token:      c.Token,
		CACertHash: c.CACertHash,
		NodeName:   nodeName,
	}
}

// String describes the credential without the token secret.
func (c *JoinCredential) String() string {
	return fmt.Sprintf("%s endpoint=%s token=%s ca=%s expires=%s",
		c.ID, c.Endpoint, kubeadm.RedactToken(c.Token), c.CACertHash, c.ExpiresAt.Format(time.RFC3339))
}

// MarshalCredential encodes a validated credential for the store.
func MarshalCredential(c *JoinCredential) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}
	return data, nil
}

// UnmarshalCredential decodes and validates a stored credential.
func UnmarshalCredential(data []byte) (*JoinCredential, error) {
	var c JoinCredential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
