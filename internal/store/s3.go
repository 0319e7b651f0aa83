package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tradeetl/internal/util"
)

var _ TabularStore = (*S3Store)(nil)

const (
	s3Attempts  = 3
	s3BaseDelay = 500 * time.Millisecond
)

// S3Options holds the connection settings for an S3-compatible bucket.
type S3Options struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store keeps objects in one bucket of AWS S3 or an S3-compatible service
// such as MinIO. Transient failures are retried; missing keys are not.
type S3Store struct {
	tabular
	client *minio.Client
	opts   S3Options
}

// NewS3Store creates an S3Store. No request is made until first use.
func NewS3Store(opts S3Options, logger *slog.Logger) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client for %s: %w", opts.Endpoint, err)
	}
	s := &S3Store{client: client, opts: opts}
	s.tabular = newTabular(s, logger)
	return s, nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := util.Retry(ctx, s3Attempts, s3BaseDelay, func() error {
		obj, err := s.client.GetObject(ctx, s.opts.Bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return classifyS3Error(key, err)
		}
		defer obj.Close()

		data, err := io.ReadAll(obj)
		if err != nil {
			return classifyS3Error(key, err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *S3Store) put(ctx context.Context, key string, body []byte) error {
	opts := minio.PutObjectOptions{ContentType: contentType(key)}
	return util.Retry(ctx, s3Attempts, s3BaseDelay, func() error {
		_, err := s.client.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader(body), int64(len(body)), opts)
		if err != nil {
			return fmt.Errorf("putting %s: %w", s.location(key), err)
		}
		return nil
	})
}

func (s *S3Store) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.opts.Bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *S3Store) location(key string) string {
	return fmt.Sprintf("s3://%s/%s/%s", s.opts.Endpoint, s.opts.Bucket, key)
}

// classifyS3Error maps a missing key to ErrNotFound and marks it permanent so
// Retry does not spin on it.
func classifyS3Error(key string, err error) error {
	if isNoSuchKey(err) {
		return util.Permanent(fmt.Errorf("%w: %s", ErrNotFound, key))
	}
	return err
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
