// Package media uploads stop images to S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

type S3 struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3 builds an uploader. A custom endpoint switches to path-style
// addressing, which R2 and MinIO expect.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: PublicBaseURL(cfg),
	}, nil
}

func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// PublicBaseURL returns the URL prefix under which uploaded objects are
// served.
func PublicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	case cfg.Region != "" && cfg.Region != "auto":
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// StopImageKey builds the object key for a stop image:
// stops/<slug>-<uuid><ext>. Unsupported extensions are rejected.
func StopImageKey(shortName, filename string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !imageExts[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	name := slug.Make(shortName)
	if name == "" {
		name = "stop"
	}
	return "stops/" + name + "-" + uuid.NewString() + ext, nil
}
