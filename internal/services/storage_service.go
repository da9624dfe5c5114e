// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/eshop-backend/internal/config"
)

// ObjectStore persists uploaded files under a key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

type StorageService struct {
	store   ObjectStore
	options UploadOptions
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

// NewStorageService stores product images in S3 when a bucket is configured
// and on the local filesystem otherwise.
func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.S3Bucket == "" {
		return NewStorageServiceWithStore(NewLocalObjectStore(cfg.AWS.LocalUploadDir, cfg.AWS.LocalUploadURL)), nil
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewStorageServiceWithStore(&S3ObjectStore{
		client:    s3.New(sess),
		bucket:    cfg.AWS.S3Bucket,
		region:    cfg.AWS.Region,
		publicURL: cfg.AWS.PublicURL,
	}), nil
}

func NewStorageServiceWithStore(store ObjectStore) *StorageService {
	return &StorageService{
		store: store,
		options: UploadOptions{
			Folder:       "products",
			MaxSize:      10 * 1024 * 1024, // 10MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		},
	}
}

// UploadImage validates and stores one product image.
func (s *StorageService) UploadImage(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowedType(ext) {
		return nil, fmt.Errorf("%w: file type %s is not allowed", ErrInvalidImage, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.options.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.options.MaxSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImage, s.options.MaxSize)
	}

	contentType := imageContentType(data)
	if contentType == "" {
		return nil, fmt.Errorf("%w: unrecognized image data", ErrInvalidImage)
	}

	key := s.generateFileName(ext)
	url, err := s.store.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:      url,
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.store.Delete(ctx, key)
}

func (s *StorageService) allowedType(ext string) bool {
	for _, allowed := range s.options.AllowedTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *StorageService) generateFileName(ext string) string {
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, uuid.New().String(), ext)
	if s.options.Folder != "" {
		return s.options.Folder + "/" + filename
	}
	return filename
}

// imageContentType sniffs common image signatures.
func imageContentType(buffer []byte) string {
	switch {
	case len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF:
		return "image/jpeg"
	case len(buffer) >= 8 && bytes.Equal(buffer[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(buffer) >= 6 && (string(buffer[:6]) == "GIF87a" || string(buffer[:6]) == "GIF89a"):
		return "image/gif"
	case len(buffer) >= 12 && string(buffer[:4]) == "RIFF" && string(buffer[8:12]) == "WEBP":
		return "image/webp"
	default:
		return ""
	}
}

// S3ObjectStore keeps objects in an S3 bucket.
type S3ObjectStore struct {
	client    *s3.S3
	bucket    string
	region    string
	publicURL string
}

func (s *S3ObjectStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.publicURL, "/"), key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// LocalObjectStore writes objects below a directory served at baseURL.
type LocalObjectStore struct {
	dir     string
	baseURL string
}

func NewLocalObjectStore(dir, baseURL string) *LocalObjectStore {
	return &LocalObjectStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *LocalObjectStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return l.baseURL + "/" + key, nil
}

func (l *LocalObjectStore) Delete(_ context.Context, key string) error {
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	logrus.WithField("key", key).Debug("Local file deleted")
	return nil
}
