package objectstore

import (
	"context"
	"fmt"

	"trail-go/internal/config"
	"trail-go/internal/trail"
)

// NewObjectStoreFromConfig creates an ObjectStore based on the config type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.ObjectStoreConfig) (trail.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem object store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
