// Package blob stores uploaded document data in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPresignTTL = 15 * time.Minute

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Store is a MinIO-backed document data store.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// NewStore builds the client. It does not touch the network; a static region
// lets presigning work without a bucket-location lookup.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("blob: endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, region: region}, nil
}

// EnsureBucket creates the bucket if it is missing.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	log.Printf("blob: created bucket %s", s.bucket)
	return nil
}

// ObjectKey is where the data for dataID lives in the bucket.
func ObjectKey(dataID string) string {
	return path.Join("documents", dataID)
}

func (s *Store) Put(ctx context.Context, dataID string, r io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/pdf"
	}
	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(dataID), r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put document data %s: %w", dataID, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for dataID.
func (s *Store) PresignGet(ctx context.Context, dataID, filename string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ObjectKey(dataID), ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign document data %s: %w", dataID, err)
	}
	return u.String(), nil
}
