package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	data := []byte(`{"manifest":{}}`)

	if err := store.Write(ctx, "orders/abc.bundle.json", data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(ctx, "orders/abc.bundle.json")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Read returned %q, want %q", got, data)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	if err := store.Write(ctx, "k.json", []byte("first")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := store.Write(ctx, "k.json", []byte("second")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := store.Read(ctx, "k.json")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read returned %q after overwrite, want %q", got, "second")
	}
}

func TestFileStoreExistsAndDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	ok, err := store.Exists(ctx, "gone.json")
	if err != nil || ok {
		t.Errorf("Exists before write: %v, %v", ok, err)
	}

	if err := store.Write(ctx, "gone.json", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ok, err = store.Exists(ctx, "gone.json")
	if err != nil || !ok {
		t.Errorf("Exists after write: %v, %v", ok, err)
	}

	if err := store.Delete(ctx, "gone.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ok, err = store.Exists(ctx, "gone.json")
	if err != nil || ok {
		t.Errorf("Exists after delete: %v, %v", ok, err)
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "gone.json"); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestFileStoreReadNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	_, err = store.Read(context.Background(), "missing.json")
	if err == nil || !strings.Contains(err.Error(), "blob not found") {
		t.Errorf("Read of missing key got %v, want blob not found", err)
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	for _, key := range []string{"", "/etc/passwd", "../escape.json", "..", ".", "a/../../b.json"} {
		if err := store.Write(ctx, key, []byte("x")); err == nil {
			t.Errorf("Write accepted key %q", key)
		}
		if _, err := store.Read(ctx, key); err == nil {
			t.Errorf("Read accepted key %q", key)
		}
	}

	// Nothing escaped the base directory.
	if _, err := os.Stat(filepath.Join(base, "..", "escape.json")); !os.IsNotExist(err) {
		t.Errorf("traversal key reached the filesystem: %v", err)
	}
}

func TestFileStoreWriteIsAtomic(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := store.Write(context.Background(), "b.json", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "b.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}
