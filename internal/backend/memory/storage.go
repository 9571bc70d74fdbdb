package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"backplane/internal/backend/domain"
	"backplane/internal/platform/clock"
	perr "backplane/internal/platform/errors"
)

// object is one stored blob
type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Storage satisfies domain.StoragePort with in-memory buckets.
// Bytes in, URL out; transport is somebody else's problem
type Storage struct {
	mu      sync.RWMutex
	clk     clock.Clock
	baseURL string
	buckets map[string]map[string]object
}

// NewStorage builds an empty storage engine. baseURL prefixes public URLs
func NewStorage(clk clock.Clock, baseURL string) *Storage {
	if clk == nil {
		clk = clock.Real()
	}
	if baseURL == "" {
		baseURL = "https://storage.backplane.local"
	}
	return &Storage{
		clk:     clk,
		baseURL: strings.TrimRight(baseURL, "/"),
		buckets: map[string]map[string]object{},
	}
}

// Upload stores data under bucket+path and returns the public URL.
// Overwriting an existing path without opts.Upsert is a Conflict
func (s *Storage) Upload(ctx context.Context, bucket, path string, data []byte, opts domain.UploadOptions) (string, error) {
	if bucket == "" || path == "" {
		return "", perr.InvalidArgf("bucket and path are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		b = map[string]object{}
		s.buckets[bucket] = b
	}
	if _, exists := b[path]; exists && !opts.Upsert {
		return "", perr.Conflictf("object %s/%s already exists", bucket, path)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	b[path] = object{data: cp, contentType: opts.ContentType, updatedAt: s.clk.Now()}
	return s.publicURL(bucket, path), nil
}

// Download returns a copy of the object's bytes
func (s *Storage) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.buckets[bucket][path]
	if !ok {
		return nil, perr.NotFoundf("object %s/%s not found", bucket, path)
	}
	cp := make([]byte, len(o.data))
	copy(cp, o.data)
	return cp, nil
}

// Delete removes the object; deleting a missing object fails with NotFound
func (s *Storage) Delete(ctx context.Context, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return perr.NotFoundf("object %s/%s not found", bucket, path)
	}
	if _, ok := b[path]; !ok {
		return perr.NotFoundf("object %s/%s not found", bucket, path)
	}
	delete(b, path)
	return nil
}

// GetPublicURL returns the public URL without checking existence, matching
// remote storage services that mint URLs client side
func (s *Storage) GetPublicURL(bucket, path string) string {
	return s.publicURL(bucket, path)
}

// List returns objects under prefix sorted by path
func (s *Storage) List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ObjectInfo{}
	for path, o := range s.buckets[bucket] {
		if prefix != "" && !strings.HasPrefix(path, prefix) {
			continue
		}
		out = append(out, domain.ObjectInfo{
			Path:        path,
			Size:        len(o.data),
			ContentType: o.contentType,
			UpdatedAt:   o.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *Storage) publicURL(bucket, path string) string {
	return s.baseURL + "/object/public/" + bucket + "/" + strings.TrimLeft(path, "/")
}
