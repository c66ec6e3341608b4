package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"trail-go/internal/trail"
)

// MemoryStore is an in-memory object store, safe for concurrent use.
type MemoryStore struct {
	baseURL      string
	objects      map[string][]byte
	contentTypes map[string]string
	mu           sync.RWMutex

	// FailPut makes every Put fail with this error when non-nil.
	FailPut error
}

// NewMemoryStore creates an empty store. Public URLs are baseURL + "/" + key.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{
		baseURL:      baseURL,
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.RLock()
	failPut := m.FailPut
	m.mu.RUnlock()
	if failPut != nil {
		return failPut
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return joinURL(m.baseURL, key)
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// SetFailPut sets or clears the Put failure.
func (m *MemoryStore) SetFailPut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailPut = err
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the content type an object was stored with.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contentTypes[key]
}

var _ trail.ObjectStore = (*MemoryStore)(nil)
