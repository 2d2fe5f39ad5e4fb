package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lumen/internal/config"
	"lumen/internal/models"
	"lumen/internal/observability"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// objectStore is the part of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Uploader stores media in an S3-compatible bucket.
type S3Uploader struct {
	store   objectStore
	bucket  string
	baseURL string
	logger  *zap.Logger

	mu      sync.Mutex
	ensured bool
}

// NewS3Client builds a MinIO client from configuration.
func NewS3Client(cfg *config.Config) (*minio.Client, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// NewS3Uploader returns an uploader for client. Public URLs are built from
// cfg.MediaPublicBaseURL, falling back to the client's endpoint.
func NewS3Uploader(client *minio.Client, cfg *config.Config, logger *zap.Logger) *S3Uploader {
	base := strings.TrimRight(cfg.MediaPublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/")
	}
	return newS3Uploader(client, cfg.S3Bucket, base, logger)
}

func newS3Uploader(store objectStore, bucket, baseURL string, logger *zap.Logger) *S3Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Uploader{
		store:   store,
		bucket:  strings.TrimSpace(bucket),
		baseURL: baseURL,
		logger:  logger,
	}
}

// EnsureBucket creates the bucket on first use. A failed attempt is retried on the next call.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ensured {
		return nil
	}
	if u.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", u.bucket, err)
	}
	if !exists {
		if err := u.store.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("ensure s3 bucket %q: %w", u.bucket, err)
		}
	}
	u.ensured = true
	return nil
}

// Upload stores the file and returns its reference. The local file is removed on every path.
func (u *S3Uploader) Upload(ctx context.Context, file LocalFile, kind Kind) (ref models.MediaRef, err error) {
	defer RemoveLocal(u.logger, file)

	ctx, span := observability.StartSpan(ctx, "media.upload",
		attribute.String("media.kind", string(kind)),
		attribute.Int64("media.size", file.Size),
	)
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		observability.MediaUploads.WithLabelValues(string(kind), result).Inc()
		observability.MediaUploadLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	if err := u.EnsureBucket(ctx); err != nil {
		return models.MediaRef{}, err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	size := file.Size
	if size <= 0 {
		info, statErr := f.Stat()
		if statErr != nil {
			return models.MediaRef{}, fmt.Errorf("stat upload: %w", statErr)
		}
		size = info.Size()
	}

	key := u.objectKey(file, kind)
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := u.store.PutObject(ctx, u.bucket, key, f, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return models.MediaRef{}, fmt.Errorf("put object to s3: %w", err)
	}

	return models.MediaRef{ObjectID: key, URL: u.publicURL(key)}, nil
}

// Delete removes a stored object.
func (u *S3Uploader) Delete(ctx context.Context, objectID string) error {
	if objectID == "" {
		return nil
	}
	if err := u.store.RemoveObject(ctx, u.bucket, objectID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (u *S3Uploader) objectKey(file LocalFile, kind Kind) string {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(file.Path))
	}
	return folderFor(file, kind) + "/" + uuid.NewString() + ext
}

func (u *S3Uploader) publicURL(key string) string {
	return u.baseURL + "/" + u.bucket + "/" + key
}
