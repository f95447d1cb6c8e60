package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/splax/launchpad/pkg/config"
)

// Minio uploads objects to an S3-compatible server such as MinIO.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to cfg.Endpoint. The endpoint may be a bare host:port or
// a URL whose scheme decides TLS.
func NewMinio(cfg config.StorageConfig) (*Minio, error) {
	endpoint, secure, err := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

func minioEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("minio endpoint required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse minio endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

// Upload implements Uploader.
func (m *Minio) Upload(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}
