// Package memory keeps objects and records in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ObjectStore stores media in-memory and returns memory:// URLs.
type ObjectStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	uploads int
}

// NewObjectStore creates an empty in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{data: make(map[string][]byte)}
}

// List returns names directly under namespace.
func (s *ObjectStore) List(_ context.Context, namespace string) ([]string, error) {
	prefix := strings.TrimSuffix(namespace, "/") + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for key := range s.data {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names, nil
}

// Upload stores a private copy of data under p.
func (s *ObjectStore) Upload(_ context.Context, p string, data []byte, _ string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path.Clean(p)] = append([]byte(nil), data...)
	s.uploads++
	return nil
}

// PublicURL returns a pseudo URL for p.
func (s *ObjectStore) PublicURL(p string) string {
	return "memory://" + p
}

// Object returns a copy of the bytes stored at p.
func (s *ObjectStore) Object(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[p]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Uploads reports how many writes reached the store.
func (s *ObjectStore) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}
