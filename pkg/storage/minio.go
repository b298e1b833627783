package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultOpTimeout = 30 * time.Second

// Minio stores documents in an S3-compatible bucket.
type Minio struct {
	client    *minio.Client
	bucket    string
	region    string
	opTimeout time.Duration
}

// NewMinio connects to the bucket and creates it when missing.
func NewMinio(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Minio, error) {
	store, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", store.bucket), "minio storage initialized")
	}
	return store, nil
}

func newMinioClient(cfg config.StorageConfig) (*Minio, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Minio{client: client, bucket: cfg.Bucket, region: cfg.Region, opTimeout: timeout}, nil
}

func (s *Minio) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *Minio) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *Minio) Get(ctx context.Context, key string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, translateMinioError(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioError(key, err)
	}
	return &Object{Key: key, ContentType: info.ContentType, Size: info.Size, Data: data}, nil
}

func (s *Minio) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Minio) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio ping: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func translateMinioError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}
