// Package storage uploads user media (videos, thumbnails, avatars and cover
// images) to an S3 compatible object store and returns the public location.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/config"
)

// ErrNotConfigured is returned by Unconfigured for every upload.
var ErrNotConfigured = apperr.Unavailable(errors.New("media host is not configured"))

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type deleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores media in an S3 compatible bucket.
type S3Storage struct {
	uploader uploader
	client   deleter
	bucket   string
	baseURL  string
}

// NewS3Storage configures an uploader targeting the provided object store. Static
// credentials are used when both keys are set; otherwise the default AWS chain applies.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newS3Storage(up, client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Storage(up uploader, client deleter, bucket, baseURL string) *S3Storage {
	return &S3Storage{
		uploader: up,
		client:   client,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}
}

// Save uploads r under key and returns its public location.
func (s *S3Storage) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("s3 storage: empty key")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(r),
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", apperr.Unavailable(fmt.Errorf("s3 storage upload %s: %w", key, err))
	}

	return s.URL(key), nil
}

// Delete removes the object stored under key. It is used to discard an upload
// whose record could not be written.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimLeft(key, "/")),
	})
	if err != nil {
		return fmt.Errorf("s3 storage delete %s: %w", key, err)
	}
	return nil
}

// URL returns the public location of key.
func (s *S3Storage) URL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

// Unconfigured rejects uploads when no media host is set up.
type Unconfigured struct{}

// Save always fails with ErrNotConfigured.
func (Unconfigured) Save(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

// Delete is a no-op.
func (Unconfigured) Delete(context.Context, string) error { return nil }

// Key builds a unique, date partitioned object key such as
// "avatars/2026/10/16/<uuid>.png" for an upload named filename.
func Key(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", strings.Trim(prefix, "/"), now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}
