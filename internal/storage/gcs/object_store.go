// Package gcs provides an ObjectStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// DefaultPublicBaseURL is where public GCS objects are served from.
const DefaultPublicBaseURL = "https://storage.googleapis.com"

// Config captures the parameters required to address a bucket.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	// PublicBaseURL overrides DefaultPublicBaseURL, e.g. for a CDN in front of the bucket.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// ObjectStore writes media to a configured GCS bucket.
type ObjectStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// New creates a GCS-backed object store.
func New(client *storage.Client, cfg Config) (*ObjectStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = DefaultPublicBaseURL + "/" + cfg.Bucket
	}
	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

// List returns object names directly under namespace, relative to it.
func (s *ObjectStore) List(ctx context.Context, namespace string) ([]string, error) {
	prefix := strings.TrimSuffix(namespace, "/") + "/"
	query := &storage.Query{Prefix: prefix, Delimiter: "/"}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("select attrs: %w", err)
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		// Synthetic directory entries carry only Prefix.
		if attrs.Name == "" {
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, prefix))
	}
	return names, nil
}

// Upload writes data to path in the bucket.
func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// PublicURL returns the HTTPS address of path.
func (s *ObjectStore) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
