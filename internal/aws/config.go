// Package aws wires the AWS SDK v2 clients the service depends on: S3 only
// (object storage for source media, rendered scenes and composed results).
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewConfig loads the default AWS SDK configuration for region. When
// accessKeyID/secretAccessKey are both set (the usual case for R2/MinIO
// endpoints, which don't participate in the default credential chain), a
// static credentials provider is used instead.
func NewConfig(ctx context.Context, region, accessKeyID, secretAccessKey string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	return cfg, nil
}

// NewS3Client builds an S3 client. endpoint overrides the default AWS
// endpoint when set, so the same client works against S3-compatible
// providers (R2, MinIO) reachable under STORAGE_PROVIDER=r2.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	if endpoint == "" {
		return s3.NewFromConfig(cfg)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}
