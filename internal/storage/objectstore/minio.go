package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/fw-release/internal/config"
	"github.com/oshokin/fw-release/internal/domain/release"
	"github.com/oshokin/fw-release/internal/logger"
)

// ContentType is set on uploaded archives.
const ContentType = "application/zip"

var errEndpointRequired = errors.New("object storage endpoint must be provided")

// Client uploads archives to one bucket.
type Client struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to the storage, creating the bucket when it does not exist.
func New(ctx context.Context, cfg config.Upload) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errEndpointRequired
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}

	if !exists {
		logger.InfoKV(ctx, "Bucket not found, creating", "bucket", cfg.Bucket)

		if err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// ObjectKey joins the configured prefix and the archive name.
func ObjectKey(prefix, name string) string {
	return strings.TrimPrefix(path.Join(prefix, name), "/")
}

// Publish uploads the archive described by res and returns its object key.
func (c *Client) Publish(ctx context.Context, res *release.Result) (string, error) {
	file, err := os.Open(filepath.Clean(res.Path))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	key := ObjectKey(c.prefix, res.Name)

	info, err := c.client.PutObject(ctx, c.bucket, key, file, res.Size, minio.PutObjectOptions{
		ContentType: ContentType,
		UserMetadata: map[string]string{
			"program":  res.Program,
			"version":  res.Version.String(),
			"checksum": res.Checksum,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	logger.InfoKV(ctx, "Archive uploaded", "bucket", c.bucket, "key", key, "etag", info.ETag)

	return key, nil
}
