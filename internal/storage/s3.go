package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/sohnjk/docspace/internal/config"
)

// S3Store is the cold-storage blob store the mirror worker copies local
// blobs into. Locators are shared with the local store so a node's
// storage_path resolves in either backend.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg config.Cloud) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("cloud bucket is required")
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style keeps S3-compatible backends (R2, MinIO) working.
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, r io.Reader) (string, error) {
	locator := uuid.NewString()
	if err := s.PutAs(ctx, locator, r); err != nil {
		return "", err
	}
	return locator, nil
}

// PutAs stores the stream under a caller-chosen locator. The mirror worker
// uses it so the cloud copy keeps the node's existing storage_path.
func (s *S3Store) PutAs(ctx context.Context, locator string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", locator, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", locator, err)
	}
	return out.Body, nil
}

func (s *S3Store) Copy(ctx context.Context, locator string) (string, error) {
	newLocator := uuid.NewString()
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + locator),
		Key:        aws.String(newLocator),
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy object %s: %w", locator, err)
	}
	return newLocator, nil
}

func (s *S3Store) Delete(ctx context.Context, locator string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", locator, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, locator string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	return err == nil
}
