// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/javajoker/vendor-settlement/internal/config"
)

// ObjectStore persists settlement documents: bank transfer instructions and
// reconciliation archives.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (*StoredObject, error)
}

type StoredObject struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
}

type StorageService struct {
	s3Client *s3.S3
	config   *config.AWSConfig
}

func NewStorageService(cfg *config.AWSConfig) (*StorageService, error) {
	if cfg.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: cfg}, nil
	}

	// Create AWS session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

func (s *StorageService) PutObject(ctx context.Context, key string, body []byte, contentType string) (*StoredObject, error) {
	if s.s3Client != nil {
		return s.putToS3(ctx, key, body, contentType)
	}
	return s.putToLocal(key, body)
}

func (s *StorageService) putToS3(ctx context.Context, key string, body []byte, contentType string) (*StoredObject, error) {
	params := &s3.PutObjectInput{
		Bucket:               aws.String(s.config.S3Bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String(contentType),
		ContentLength:        aws.Int64(int64(len(body))),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &StoredObject{
		Key:      key,
		Location: fmt.Sprintf("s3://%s/%s", s.config.S3Bucket, key),
		Size:     int64(len(body)),
	}, nil
}

func (s *StorageService) putToLocal(key string, body []byte) (*StoredObject, error) {
	path := filepath.Join(s.config.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return &StoredObject{
		Key:      key,
		Location: "file://" + path,
		Size:     int64(len(body)),
	}, nil
}

