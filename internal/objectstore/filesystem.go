package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"trail-go/internal/trail"
)

// FileSystemStore keeps objects as files below root, one file per key.
// Slashes in keys become directories.
type FileSystemStore struct {
	root    string
	baseURL string
}

// NewFileSystemStore creates the root directory if needed. When baseURL is
// empty, public URLs are file:// URLs.
func NewFileSystemStore(root, baseURL string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving object store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store root: %w", err)
	}
	return &FileSystemStore{root: abs, baseURL: baseURL}, nil
}

func (s *FileSystemStore) pathFor(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes the object atomically (temp file + rename).
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	destPath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (s *FileSystemStore) Get(ctx context.Context, key string, w io.Writer) error {
	srcPath, err := s.pathFor(key)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

func (s *FileSystemStore) PublicURL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))}
	return u.String()
}

// ValidateSetup verifies the root is a writable directory.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("object store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("object store root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("object store root not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

var _ trail.ObjectStore = (*FileSystemStore)(nil)
