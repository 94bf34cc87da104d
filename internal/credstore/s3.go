package credstore

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/imamik/kubejoin/internal/platform/s3"
)

// ObjectClient is the subset of the S3 client the store needs.
type ObjectClient interface {
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// S3Store publishes values as objects in an S3-compatible bucket. Each value
// is written with a single PUT; object storage replaces objects atomically.
type S3Store struct {
	client ObjectClient
	bucket string
	prefix string
}

// NewS3Store creates a store writing under bucket/prefix.
func NewS3Store(client ObjectClient, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	return s.client.CreateBucket(ctx, s.bucket)
}

// Publish implements Store.
func (s *S3Store) Publish(ctx context.Context, key string, data []byte) error {
	if err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", s.Ref(key), err)
	}
	return nil
}

// Fetch implements Store.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key))
	if err != nil {
		if errors.Is(err, s3.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", s.Ref(key), ErrNotPublished)
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Ref(key), err)
	}
	return data, nil
}

// Revoke implements Store.
func (s *S3Store) Revoke(ctx context.Context, key string) error {
	if err := s.client.DeleteObject(ctx, s.bucket, s.objectKey(key)); err != nil {
		return fmt.Errorf("failed to revoke %s: %w", s.Ref(key), err)
	}
	return nil
}

// Ref implements Store.
func (s *S3Store) Ref(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectKey(key))
}
