package objectstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"trail-go/internal/trail"
)

// storeCases returns one fresh instance of every local backend.
func storeCases(t *testing.T) map[string]trail.ObjectStore {
	t.Helper()
	fs, err := NewFileSystemStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return map[string]trail.ObjectStore{
		"memory":     NewMemoryStore(""),
		"filesystem": fs,
	}
}

func TestObjectStore_PutGet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		data    string
		size    int64
		wantErr bool
	}{
		{"flat key", "2024-01-15T10:30:00Z_1.jpg", "jpeg bytes", 10, false},
		{"nested key", "backups/device-1/trail.db.zst.age", "sealed", 6, false},
		{"empty object", "empty.bin", "", 0, false},
		{"size mismatch", "short.bin", "abc", 100, true},
		{"escaping key", "../outside", "x", 1, true},
		{"absolute key", "/etc/passwd", "x", 1, true},
	}

	for name, store := range storeCases(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				err := store.Put(ctx, tt.key, strings.NewReader(tt.data), tt.size, "image/jpeg")
				if (err != nil) != tt.wantErr {
					t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tt.wantErr {
					return
				}

				var buf bytes.Buffer
				if err := store.Get(ctx, tt.key, &buf); err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if buf.String() != tt.data {
					t.Errorf("Get() = %q, want %q", buf.String(), tt.data)
				}
			})
		}
	}
}

func TestObjectStore_Overwrite(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Put(ctx, "k", strings.NewReader("first"), 5, "text/plain"); err != nil {
				t.Fatal(err)
			}
			if err := store.Put(ctx, "k", strings.NewReader("second"), 6, "text/plain"); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := store.Get(ctx, "k", &buf); err != nil {
				t.Fatal(err)
			}
			if buf.String() != "second" {
				t.Errorf("Get() = %q, want second", buf.String())
			}
		})
	}
}

func TestObjectStore_GetMissing(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Get(context.Background(), "nope.jpg", &bytes.Buffer{})
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestObjectStore_ValidateSetup(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.ValidateSetup(context.Background()); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	fs, err := NewFileSystemStore(t.TempDir(), "https://cdn.example.com/assets/")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		store trail.ObjectStore
		key   string
		want  string
	}{
		{"memory default", NewMemoryStore(""), "a.jpg", "memory://objects/a.jpg"},
		{"memory base", NewMemoryStore("https://img.example.com"), "a.jpg", "https://img.example.com/a.jpg"},
		{"filesystem base", fs, "x/a.jpg", "https://cdn.example.com/assets/x/a.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.store.PublicURL(tt.key); got != tt.want {
				t.Errorf("PublicURL() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("filesystem file url", func(t *testing.T) {
		root := t.TempDir()
		store, err := NewFileSystemStore(root, "")
		if err != nil {
			t.Fatal(err)
		}
		got := store.PublicURL("a.jpg")
		if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "/a.jpg") {
			t.Errorf("PublicURL() = %q, want file:// URL ending in /a.jpg", got)
		}
	})
}

func TestMemoryStore_FailPut(t *testing.T) {
	store := NewMemoryStore("")
	boom := errors.New("network down")
	store.SetFailPut(boom)

	err := store.Put(context.Background(), "a.jpg", strings.NewReader("x"), 1, "image/jpeg")
	if !errors.Is(err, boom) {
		t.Fatalf("Put() error = %v, want %v", err, boom)
	}
	if len(store.Keys()) != 0 {
		t.Errorf("Keys() = %v, want empty", store.Keys())
	}

	store.SetFailPut(nil)
	if err := store.Put(context.Background(), "a.jpg", strings.NewReader("x"), 1, "image/jpeg"); err != nil {
		t.Fatalf("Put() after clearing failure error = %v", err)
	}
	if got := store.ContentType("a.jpg"); got != "image/jpeg" {
		t.Errorf("ContentType() = %q, want image/jpeg", got)
	}
}
