package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MinIOStore keeps assets in an S3-compatible bucket.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *logrus.Logger
}

// NewMinIOStore connects to the endpoint and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, opts Options, logger *logrus.Logger) (*MinIOStore, error) {
	client, err := minio.New(opts.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.MinioAccessKey, opts.MinioSecretKey, ""),
		Secure: opts.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	store := &MinIOStore{
		client:    client,
		bucket:    opts.MinioBucket,
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
		logger:    logger,
	}
	if store.publicURL == "" {
		scheme := "http"
		if opts.MinioUseSSL {
			scheme = "https"
		}
		store.publicURL = fmt.Sprintf("%s://%s/%s", scheme, opts.MinioEndpoint, opts.MinioBucket)
	}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"endpoint": opts.MinioEndpoint,
		"bucket":   opts.MinioBucket,
	}).Info("Connected to MinIO storage")
	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", s.bucket, err)
	}
	s.logger.WithField("bucket", s.bucket).Info("Created bucket")
	return nil
}

// Name identifies the backend in health output.
func (s *MinIOStore) Name() string { return "minio" }

// Save uploads r as a new object. size may be -1 when unknown.
func (s *MinIOStore) Save(ctx context.Context, kind Kind, originalName string, r io.Reader, size int64, contentType string) (Object, error) {
	key := objectName(kind, originalName, time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return Object{Key: key, URL: s.publicURL + "/" + key}, nil
}

// Delete removes the object for key.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Ping checks the bucket is reachable.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
