package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
)

// MinioService archives uploaded declarations in an object store bucket
type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

const documentRoot = "declarations"

// DocumentKey builds the object key for a tenant's declaration
func DocumentKey(tenant, id, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "declaration.pdf"
	}
	return path.Join(documentRoot, tenant, id, name)
}

// DocumentPrefix is the key prefix shared by every declaration of tenant
func DocumentPrefix(tenant string) string {
	return documentRoot + "/" + tenant + "/"
}

// OwnsDocument reports whether key names an object under the tenant's prefix.
// Keys that are not in clean form are rejected so ".." cannot leave the prefix.
func OwnsDocument(tenant, key string) bool {
	if tenant == "" || strings.Contains(tenant, "/") || path.Clean(key) != key {
		return false
	}
	prefix := DocumentPrefix(tenant)
	return strings.HasPrefix(key, prefix) && len(key) > len(prefix)
}

// ArchiveDocument stores the document and returns its object key
func (s *MinioService) ArchiveDocument(ctx context.Context, tenant string, doc SourceDocument) (string, error) {
	key := DocumentKey(tenant, uuid.New().String(), doc.Filename)
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc.Data), int64(len(doc.Data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"tenant": tenant,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive document: %w", err)
	}
	return key, nil
}

// PresignedURL generates a download URL for an archived document
func (s *MinioService) PresignedURL(ctx context.Context, key string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry(s.config.ExpireDays), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// presignExpiry keeps the validity within what S3 accepts
func presignExpiry(days int) time.Duration {
	if days < 1 || days > config.MaxPresignDays {
		days = config.MaxPresignDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// DeleteDocument removes an archived document
func (s *MinioService) DeleteDocument(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
