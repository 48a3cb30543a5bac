package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink archives objects to an S3 bucket under an optional key prefix.
type S3Sink struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewS3Sink builds a sink from the ambient AWS credential chain.
func NewS3Sink(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Sink{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.With("component", "archive"),
	}, nil
}

// Put uploads the object to s3://<bucket>/<prefix>/<key>.
func (s *S3Sink) Put(ctx context.Context, key string, body io.Reader) error {
	fullKey := key
	if s.prefix != "" {
		fullKey = path.Join(s.prefix, key)
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, fullKey, err)
	}
	s.logger.Debug("archived", "bucket", s.bucket, "key", fullKey)
	return nil
}
