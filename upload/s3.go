package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Result describes a stored object: the public URL served back to clients
// and the storage key needed to delete the object later.
type Result struct {
	URL      string
	PublicID string
}

// Uploader stores and removes avatar images.
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, contentType string) (*Result, error)
	Delete(ctx context.Context, publicID string) error
}

// Config holds S3 connection settings. Endpoint is optional and set when
// targeting an S3-compatible service such as MinIO.
type Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string

	// PublicBaseURL is the prefix under which stored objects are
	// reachable. Defaults to the virtual-hosted bucket URL.
	PublicBaseURL string
}

// S3Uploader implements [Uploader] on top of an S3 bucket.
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Uploader builds the S3 client from static credentials.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("upload: region and bucket are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("upload: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// StorageKey returns a fresh object key partitioned by date, so a bucket
// listing stays navigable and keys never collide.
func StorageKey() string {
	d := time.Now()
	return fmt.Sprintf("avatars/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload stores the body under a fresh storage key.
func (u *S3Uploader) Upload(ctx context.Context, body io.Reader, contentType string) (*Result, error) {
	key := StorageKey()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload: put object: %w", err)
	}
	return &Result{
		URL:      u.baseURL + "/" + key,
		PublicID: key,
	}, nil
}

// Delete removes a previously stored object. Deleting an absent key is not
// an error in S3, which keeps compensation idempotent.
func (u *S3Uploader) Delete(ctx context.Context, publicID string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("upload: delete object: %w", err)
	}
	return nil
}
