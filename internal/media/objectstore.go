package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig holds connection settings for an S3-compatible bucket.
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectStore serves resources from an S3-compatible bucket. Paths are object keys.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewObjectStore constructs a MinIO-backed store. No request is made until first use.
func NewObjectStore(cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("%w: missing bucket", ErrStoreNotReady)
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *ObjectStore) Stat(ctx context.Context, name string) (Info, error) {
	key := objectKey(name)
	oi, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Info{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return Info{
		Size:        oi.Size,
		ModTime:     oi.LastModified,
		Regular:     !strings.HasSuffix(key, "/"),
		ContentType: oi.ContentType,
	}, nil
}

func (s *ObjectStore) OpenRange(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
	}
	key := objectKey(name)

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("set object range: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	s.logger.Debug("media.objectstore.open",
		"bucket", s.bucket,
		"key", key,
		"start", start,
		"end", end,
	)

	// The object is lazy; limit it so a misbehaving backend cannot overrun the window.
	return &rangeReadCloser{Reader: io.LimitReader(obj, end-start+1), closer: obj}, nil
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func objectKey(name string) string {
	return strings.TrimPrefix(normalizePath(name), "/")
}

func isMissingObject(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}
