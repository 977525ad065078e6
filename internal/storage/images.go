package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/paperledger/internal/tenant"
)

// ImageStore keeps uploaded originals in object storage under a
// tenant-prefixed path. The returned reference is the object path, not a
// URL; callers resolve it through the storage backend when needed.
type ImageStore struct {
	backend Storage
	bucket  string
}

func NewImageStore(backend Storage, bucket string) *ImageStore {
	if bucket == "" {
		bucket = "documents"
	}
	return &ImageStore{backend: backend, bucket: bucket}
}

func (s *ImageStore) SaveImage(ctx context.Context, key tenant.Key, documentID uuid.UUID, data []byte, filename string) (string, error) {
	ext := filepath.Ext(filename)
	path := fmt.Sprintf("%s/%s/%s%s", key.UserID, key.CompanyID, documentID, ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.backend.Upload(ctx, s.bucket, path, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return path, nil
}
