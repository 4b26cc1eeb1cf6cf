package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectOptions configures an S3 compatible bucket.
type ObjectOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the address media is served from, for buckets
	// fronted by a CDN. Empty means <scheme>://<endpoint>/<bucket>.
	PublicURL string
}

type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// minioAdapter narrows the reader type so tests can stub the client.
type minioAdapter struct{ client *minio.Client }

func (m minioAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return m.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (m minioAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return m.client.BucketExists(ctx, bucketName)
}

func (m minioAdapter) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.client.MakeBucket(ctx, bucketName, opts)
}

// ObjectStore stores media in an S3 compatible bucket through minio-go.
type ObjectStore struct {
	client  objectClient
	bucket  string
	baseURL string
}

// NewObjectStore connects to the configured endpoint. It does not touch the
// network; call EnsureBucket at startup to verify access.
func NewObjectStore(opts ObjectOptions) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage: s3 endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init s3 client: %w", err)
	}
	return newObjectStore(minioAdapter{client: client}, opts), nil
}

func newObjectStore(client objectClient, opts ObjectOptions) *ObjectStore {
	base := strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/")
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, strings.TrimSpace(opts.Endpoint), opts.Bucket)
	}
	return &ObjectStore{client: client, bucket: opts.Bucket, baseURL: base}
}

// EnsureBucket creates the bucket when missing.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ObjectStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleanKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object %s: %w", cleanKey, err)
	}
	return cleanKey, nil
}

func (s *ObjectStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}

var _ Store = (*ObjectStore)(nil)
