package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// GCSBackend stores documents as objects in a Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSBackend wraps an existing client. Objects are named prefix/name.
func NewGCSBackend(client *storage.Client, bucket, prefix string, logger *zap.Logger) *GCSBackend {
	return &GCSBackend{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (b *GCSBackend) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b *GCSBackend) retryOpts(ctx context.Context, op, key string) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30 * time.Second),
		retry.MaxJitter(5 * time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Info("retrying archive operation",
				zap.String("op", op),
				zap.Uint("attempt", n),
				zap.String("key", key),
				zap.Error(err),
			)
		}),
	}
}

func (b *GCSBackend) Read(ctx context.Context, name string) ([]byte, error) {
	key := b.key(name)
	var data []byte
	err := retry.Do(
		func() error {
			r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(fmt.Errorf("%s: %w", name, ErrNotFound))
				}
				return fmt.Errorf("open reader: %w", err)
			}
			defer r.Close()
			data, err = io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read object: %w", err)
			}
			return nil
		},
		b.retryOpts(ctx, "read", key)...,
	)
	return data, err
}

func (b *GCSBackend) Write(ctx context.Context, name string, data []byte) error {
	key := b.key(name)
	return retry.Do(
		func() error {
			w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/json"
			if _, err := w.Write(data); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					b.logger.Warn("failed to close writer after error", zap.Error(closeErr))
				}
				return fmt.Errorf("write object: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close writer: %w", err)
			}
			return nil
		},
		b.retryOpts(ctx, "write", key)...,
	)
}

func (b *GCSBackend) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{}
	if b.prefix != "" {
		query.Prefix = b.prefix + "/"
	}
	it := b.client.Bucket(b.bucket).Objects(ctx, query)
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		names = append(names, path.Base(attrs.Name))
	}
	return names, nil
}
