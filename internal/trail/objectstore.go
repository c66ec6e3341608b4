package trail

import (
	"context"
	"io"
)

// ObjectStore stores binary assets (route images, database backups).
// Operations stream through io.Reader/io.Writer.
type ObjectStore interface {
	// Put stores size bytes read from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// PublicURL returns the URL clients use to fetch key.
	PublicURL(key string) string

	// ValidateSetup verifies the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
