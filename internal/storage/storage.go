// Package storage uploads build artifacts to object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/splax/launchpad/pkg/config"
)

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
}

// New builds the uploader selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("storage bucket required")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinio(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Key composes the object key for a file of a project's output. Keys always
// use forward slashes.
func Key(prefix, subdomain, rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, subdomain, rel)
	return strings.Join(parts, "/")
}

// UploadFile uploads the file at filePath under key.
func UploadFile(ctx context.Context, u Uploader, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", filePath, err)
	}

	if err := u.Upload(ctx, key, f, info.Size(), ContentType(filePath, head[:n])); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
