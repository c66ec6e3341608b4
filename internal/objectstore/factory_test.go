package objectstore

import (
	"context"
	"path/filepath"
	"testing"

	"trail-go/internal/config"
)

func TestNewObjectStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ObjectStoreConfig
		wantErr bool
	}{
		{"memory", config.ObjectStoreConfig{Type: "memory"}, false},
		{"filesystem", config.ObjectStoreConfig{Type: "filesystem", FSRoot: filepath.Join(t.TempDir(), "objects")}, false},
		{"filesystem without root", config.ObjectStoreConfig{Type: "filesystem"}, true},
		{"s3", config.ObjectStoreConfig{Type: "s3", S3Bucket: "b", S3Region: "us-east-1", S3AccessKeyID: "a", S3SecretAccessKey: "s"}, false},
		{"s3 without bucket", config.ObjectStoreConfig{Type: "s3", S3Region: "us-east-1"}, true},
		{"unknown", config.ObjectStoreConfig{Type: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewObjectStoreFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewObjectStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewObjectStoreFromConfig() returned nil store")
			}
		})
	}
}
