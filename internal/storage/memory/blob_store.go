// Package memory keeps HTML snapshots in process memory.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// BlobStore holds snapshot bodies keyed by object path. A bounded store
// evicts the oldest object once it holds more than its limit.
type BlobStore struct {
	mu         sync.RWMutex
	objects    map[string]object
	order      []string
	maxObjects int
}

type object struct {
	contentType string
	body        []byte
}

// NewBlobStore creates an empty, unbounded in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]object)}
}

// NewBoundedBlobStore creates a store that keeps at most maxObjects snapshots.
// A non-positive maxObjects means unbounded.
func NewBoundedBlobStore(maxObjects int) *BlobStore {
	s := NewBlobStore()
	if maxObjects > 0 {
		s.maxObjects = maxObjects
	}
	return s
}

// PutObject stores a copy of data under path and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read snapshot body: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.objects[path]; !exists {
		s.order = append(s.order, path)
	}
	s.objects[path] = object{contentType: contentType, body: body}
	for s.maxObjects > 0 && len(s.order) > s.maxObjects {
		delete(s.objects, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()

	return "memory://" + path, nil
}

// Object returns the stored body and content type for path.
func (s *BlobStore) Object(path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.body...), obj.contentType, true
}

// Paths lists stored object paths in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
