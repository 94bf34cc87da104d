package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/kubejoin/internal/bootstrap"
	"github.com/imamik/kubejoin/internal/credstore"
	"github.com/imamik/kubejoin/internal/kubeadm"
	"github.com/imamik/kubejoin/internal/util/naming"
)

// CredentialInfo describes the published credential without its secret.
type CredentialInfo struct {
	ID         string    `json:"id"`
	Ref        string    `json:"ref"`
	Endpoint   string    `json:"endpoint"`
	Token      string    `json:"token"`
	CACertHash string    `json:"caCertHash"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Expired    bool      `json:"expired"`
}

// now is replaced in tests.
var now = time.Now

// Credential prints the metadata of the published join credential. The
// token secret is never shown.
func Credential(ctx context.Context, configPath string, jsonOutput bool) error {
	cfg, err := loadSharedConfig(configPath, "credential")
	if err != nil {
		return err
	}

	store, err := newStore(cfg.CredentialStore)
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}

	key := naming.CredentialKey(cfg.ClusterName)
	data, err := store.Fetch(ctx, key)
	if errors.Is(err, credstore.ErrNotPublished) {
		return fmt.Errorf("no credential published at %s\nRun 'kubejoin control-plane' or 'kubejoin bootstrap' first", store.Ref(key))
	}
	if err != nil {
		return fmt.Errorf("failed to fetch credential: %w", err)
	}

	cred, err := bootstrap.UnmarshalCredential(data)
	if err != nil {
		return fmt.Errorf("credential at %s is unusable: %w", store.Ref(key), err)
	}

	info := credentialInfo(cred, store.Ref(key))
	if jsonOutput {
		return printCredentialJSON(info)
	}
	printCredential(info)
	return nil
}

func credentialInfo(cred *bootstrap.JoinCredential, ref string) CredentialInfo {
	return CredentialInfo{
		ID:         cred.ID,
		Ref:        ref,
		Endpoint:   cred.Endpoint,
		Token:      kubeadm.RedactToken(cred.Token),
		CACertHash: cred.CACertHash,
		IssuedAt:   cred.IssuedAt,
		ExpiresAt:  cred.ExpiresAt,
		Expired:    cred.Expired(now()),
	}
}

func printCredentialJSON(info CredentialInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential info: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printCredential(info CredentialInfo) {
	validity := fmt.Sprintf("valid for %s", info.ExpiresAt.Sub(now()).Round(time.Second))
	if info.Expired {
		validity = "expired"
	}

	fmt.Println()
	fmt.Printf("Join credential %s\n", info.ID)
	fmt.Printf("  Ref:       %s\n", info.Ref)
	fmt.Printf("  Endpoint:  %s\n", info.Endpoint)
	fmt.Printf("  Token:     %s\n", info.Token)
	fmt.Printf("  CA hash:   %s\n", info.CACertHash)
	fmt.Printf("  Issued:    %s\n", info.IssuedAt.Format(time.RFC3339))
	fmt.Printf("  Expires:   %s (%s)\n", info.ExpiresAt.Format(time.RFC3339), validity)
	fmt.Println()
}
