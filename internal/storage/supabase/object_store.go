package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

const listPageSize = 1000

// Storage is the subset of the Supabase storage client the object store uses.
type Storage interface {
	ListFiles(bucketID string, queryPath string, options storage_go.FileSearchOptions) ([]storage_go.FileObject, error)
	UploadFile(bucketID string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID string, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// ObjectStore keeps media in a Supabase storage bucket.
type ObjectStore struct {
	api    Storage
	bucket string
}

// NewObjectStore wraps api for bucket.
func NewObjectStore(api Storage, bucket string) (*ObjectStore, error) {
	if api == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ObjectStore{api: api, bucket: bucket}, nil
}

// List returns every object name under namespace, following pages until a
// short page is returned.
func (s *ObjectStore) List(ctx context.Context, namespace string) ([]string, error) {
	var names []string
	for offset := 0; ; offset += listPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.api.ListFiles(s.bucket, strings.Trim(namespace, "/"), storage_go.FileSearchOptions{
			Limit:  listPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucket, namespace, err)
		}
		for _, obj := range page {
			if obj.Name == "" {
				continue
			}
			names = append(names, obj.Name)
		}
		if len(page) < listPageSize {
			return names, nil
		}
	}
}

// Upload writes data to path with the given content type. An existing object
// at path is overwritten.
func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	if _, err := s.api.UploadFile(s.bucket, path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("upload %s/%s: %w", s.bucket, path, err)
	}
	return nil
}

// PublicURL returns the bucket's public address for path.
func (s *ObjectStore) PublicURL(path string) string {
	return s.api.GetPublicUrl(s.bucket, path).SignedURL
}
