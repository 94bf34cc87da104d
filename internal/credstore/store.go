package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/kubejoin/internal/config"
	"github.com/imamik/kubejoin/internal/platform/s3"
)

// ErrNotPublished is returned by Fetch when no value exists under the key.
var ErrNotPublished = errors.New("credential not published")

// Store holds published values addressed by key.
type Store interface {
	// Publish replaces the value under key in one atomic step.
	Publish(ctx context.Context, key string, data []byte) error
	// Fetch returns the current value or an error wrapping ErrNotPublished.
	Fetch(ctx context.Context, key string) ([]byte, error)
	// Revoke removes the value. Revoking a missing key succeeds.
	Revoke(ctx context.Context, key string) error
	// Ref returns the address readers use to locate key.
	Ref(key string) string
}

// New builds the store selected by cfg.
func New(cfg config.CredentialStoreConfig) (Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreS3:
		client, err := s3.NewClient(s3.Options{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported credential store type %q", cfg.Type)
	}
}
