package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "generated/job-1/page-1.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if key != "generated/job-1/page-1.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}

	if _, err := store.Read(ctx, "generated/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing read error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "a/../../escape.txt", "", "."} {
		if _, err := store.Write(ctx, key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) accepted a traversal key", key)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt")); err == nil {
		t.Fatal("file escaped the storage root")
	}
}

func TestFileStoreRemoveAll(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Write(ctx, "generated/job-1/page-1.png", []byte("x")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := store.RemoveAll(ctx, "generated/job-1"); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := store.Read(ctx, "generated/job-1/page-1.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read after remove error = %v, want ErrNotFound", err)
	}
}
