package storage

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const (
	sniffLen           = 512
	defaultContentType = "application/octet-stream"
)

// ContentType infers a content type from the file extension, then from the
// leading bytes of the file.
func ContentType(name string, head []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	if len(head) > 0 {
		if mt := mimetype.Detect(head); mt != nil {
			return mt.String()
		}
	}
	return defaultContentType
}
