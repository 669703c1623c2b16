package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	appconfig "tern/internal/config"
	"tern/internal/utils/logger"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var storageLog = logger.New("STORAGE")

// StorageService wraps the S3 bucket that holds import files and exports.
// It also backs signed URL resolution on File reads.
type StorageService struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     *logger.Logger
}

func NewStorageService(ctx context.Context, cfg *appconfig.Config) (*StorageService, error) {
	s3cfg := cfg.Storage.S3
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s3cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3cfg.AccessKey, s3cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			// Path-style keeps minio and other S3-compatible stores working.
			o.UsePathStyle = true
		}
	})

	return &StorageService{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  s3cfg.Bucket,
		log:     storageLog,
	}, nil
}

// Upload stores a blob under the given key and returns the key.
func (s *StorageService) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", s.log.Error("failed to upload %s: %v", key, err)
	}
	return key, nil
}

// UploadFile stores a multipart upload under a fresh key.
func (s *StorageService) UploadFile(ctx context.Context, file *multipart.FileHeader, acl types.ObjectCannedACL) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	key := fmt.Sprintf("uploads/%s%s", uuid.New().String(), filepath.Ext(file.Filename))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(file.Header.Get("Content-Type")),
		ACL:         acl,
	})
	if err != nil {
		return "", s.log.Error("failed to upload %s: %v", file.Filename, err)
	}

	s.log.Success("Uploaded %s as %s", file.Filename, key)
	return key, nil
}

// Download streams a stored object. The caller closes the reader.
func (s *StorageService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return out.Body, nil
}

// GetSignedURL implements models.FileURLGenerator.
func (s *StorageService) GetSignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", path, err)
	}
	return req.URL, nil
}
