package documents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gramv/onboardingsoftware-sub000/internal/onboarding/models"
	platformconfig "github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
	id "github.com/gramv/onboardingsoftware-sub000/pkg/domain"
)

// S3Storage stores documents in an S3 bucket. A configured endpoint points
// the client at LocalStack with static test credentials.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

func NewS3Storage(ctx context.Context, cfg platformconfig.StorageConfig) (*S3Storage, error) {
	var (
		awsCfg aws.Config
		err    error
	)
	if cfg.Endpoint != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

func (s *S3Storage) Store(ctx context.Context, sessionID id.SessionID, upload Upload, now time.Time) (models.Document, error) {
	if err := upload.Validate(); err != nil {
		return models.Document{}, err
	}
	doc := descriptor(sessionID, upload, now)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(doc.StorageKey),
		Body:                 bytes.NewReader(upload.Data),
		ContentType:          aws.String(doc.ContentType),
		ContentLength:        aws.Int64(doc.Size),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"session-id":    sessionID.String(),
			"document-type": string(doc.Type),
		},
	})
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to put object %s: %w", doc.StorageKey, err)
	}
	return doc, nil
}

func (s *S3Storage) Delete(ctx context.Context, storageKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", storageKey, err)
	}
	return nil
}

// URL returns a presigned GET link for reviewers.
func (s *S3Storage) URL(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}
