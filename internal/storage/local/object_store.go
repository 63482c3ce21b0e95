// Package local implements filesystem-backed object and record stores.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config captures the parameters for the local filesystem stores.
type Config struct {
	// BaseDir is the root directory where objects and record logs are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// PublicBaseURL, when set, prefixes object paths in PublicURL instead of file://.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// ObjectStore writes media objects to the local filesystem.
type ObjectStore struct {
	baseDir   string
	publicURL string
}

// New creates a local filesystem-backed object store.
func New(cfg Config) (*ObjectStore, error) {
	if err := prepareDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	return &ObjectStore{
		baseDir:   cfg.BaseDir,
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func prepareDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file: %w", err)
	}
	return nil
}

// resolve joins rel onto the base directory and rejects paths escaping it.
func (s *ObjectStore) resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is required")
	}
	cleanBase := filepath.Clean(s.baseDir)
	full := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(rel)))
	if !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// List returns the file names directly under namespace. A namespace that was
// never written to is empty, not an error.
func (s *ObjectStore) List(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(namespace)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Upload writes data to path under the base directory.
func (s *ObjectStore) Upload(ctx context.Context, path string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// PublicURL returns the address readers use to fetch path.
func (s *ObjectStore) PublicURL(path string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + strings.TrimLeft(path, "/")
	}
	return "file://" + filepath.Join(s.baseDir, filepath.FromSlash(path))
}
