package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3AssetRepository implements AssetRepository against S3 or an
// S3-compatible provider (STORAGE_PROVIDER=r2; see internal/aws.NewS3Client).
type S3AssetRepository struct {
	client     *s3.Client
	bucketName string
	logger     *zap.Logger
	http       *http.Client
}

// NewS3AssetRepository creates a new S3-backed asset repository.
func NewS3AssetRepository(client *s3.Client, bucketName string, logger *zap.Logger) *S3AssetRepository {
	return &S3AssetRepository{
		client:     client,
		bucketName: bucketName,
		logger:     logger,
		http:       &http.Client{Timeout: 5 * time.Minute},
	}
}

// GetPresignedURL generates a presigned URL for downloading an object.
func (s *S3AssetRepository) GetPresignedURL(ctx context.Context, key string, duration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = duration
	})
	if err != nil {
		s.logger.Error("failed to generate presigned URL",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// GetPresignedPutURL generates a presigned URL for uploading an object.
func (s *S3AssetRepository) GetPresignedPutURL(ctx context.Context, key, contentType string, duration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = duration
	})
	if err != nil {
		s.logger.Error("failed to generate presigned PUT URL",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to generate presigned PUT URL: %w", err)
	}

	return request.URL, nil
}

// UploadFile uploads a local file to key, returning its public-style URL.
func (s *S3AssetRepository) UploadFile(ctx context.Context, key, filePath, contentType string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucketName, key), nil
}

// DownloadFile downloads an object to destPath.
func (s *S3AssetRepository) DownloadFile(ctx context.Context, key, destPath string) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, result.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// DownloadURL fetches an arbitrary HTTP(S) URL to destPath. Phase 0 and the
// render pipelines use this for user-supplied media URLs that may live
// outside the service's own bucket.
func (s *S3AssetRepository) DownloadURL(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// DeleteFile deletes a single object. Never called on render failure:
// rendered assets are retained for retry-safety.
func (s *S3AssetRepository) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// DeletePrefix deletes every object under prefix. Reserved for explicit
// generation deletion, never failure cleanup.
func (s *S3AssetRepository) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects for prefix %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		identifiers := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, object := range page.Contents {
			if object.Key == nil {
				continue
			}
			identifiers = append(identifiers, types.ObjectIdentifier{Key: object.Key})
		}
		if len(identifiers) == 0 {
			continue
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucketName),
			Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects for prefix %s: %w", prefix, err)
		}
	}
	return nil
}

// HealthCheck performs a lightweight reachability check against the bucket.
func (s *S3AssetRepository) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// ObjectKeys are the bit-exact object-store paths external consumers
// observe.
func RenderedSceneKey(sceneID string) string {
	return fmt.Sprintf("scene-generation/scenes/%s/rendered.mp4", sceneID)
}

func FinalVideoKey(generationID string) string {
	return fmt.Sprintf("scene-generation/generations/%s/final.mp4", generationID)
}

func DebugFrameKey(sceneID string, frame int) string {
	return fmt.Sprintf("scene-generation/debug-frames/%s/frame-%06d.png", sceneID, frame)
}
