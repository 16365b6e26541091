package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PutObjectAPI is the part of *s3.Client used by S3Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures export uploads.
type S3Config struct {
	Bucket string
	Region string
	// Prefix is prepended to every object key
	Prefix  string
	Timeout time.Duration
}

// S3Uploader pushes finished export files to a bucket.
type S3Uploader struct {
	client PutObjectAPI
	config S3Config
	logger zerolog.Logger
}

// NewS3Uploader loads the default AWS configuration for cfg.Region.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(awsCfg), cfg)
}

// NewS3UploaderWithClient creates an uploader on an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &S3Uploader{
		client: client,
		config: cfg,
		logger: log.With().Str("component", "s3-uploader").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// ObjectKey returns the full object key for key.
func (u *S3Uploader) ObjectKey(key string) string {
	if u.config.Prefix == "" {
		return key
	}
	return path.Join(u.config.Prefix, key)
}

// Upload puts the file at filePath under key. There is no retry.
func (u *S3Uploader) Upload(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		s3UploadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s3UploadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("stat export: %w", err)
	}

	contentType := "text/csv"
	if strings.HasSuffix(filePath, ".gz") {
		contentType = "application/gzip"
	}

	ctx, cancel := context.WithTimeout(ctx, u.config.Timeout)
	defer cancel()

	objectKey := u.ObjectKey(key)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.config.Bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s3UploadsTotal.WithLabelValues("error").Inc()
		u.logger.Error().Err(err).Str("key", objectKey).Msg("Upload failed")
		return fmt.Errorf("put s3://%s/%s: %w", u.config.Bucket, objectKey, err)
	}

	s3UploadsTotal.WithLabelValues("success").Inc()
	u.logger.Info().Str("key", objectKey).Int64("bytes", info.Size()).Msg("Export uploaded")
	return nil
}
