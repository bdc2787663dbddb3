package storage_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/somiwear/closet/internal/domain"
	"github.com/somiwear/closet/internal/storage"
)

// Verify that *storage.Disk implements domain.FileArea at compile time.
var _ domain.FileArea = (*storage.Disk)(nil)

func TestDisk_EnsureIsIdempotent(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Ensure(1); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := d.Ensure(1); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}

func TestDisk_SaveGetList(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Save(1, "shirt.jpg", []byte("bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := d.Get(1, "shirt.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "bytes" {
		t.Fatalf("expected roundtrip, got %q", data)
	}

	names, err := d.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Contains(names, "shirt.jpg") {
		t.Fatalf("expected shirt.jpg in listing, got %v", names)
	}
}

func TestDisk_SaveOverwrites(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Save(1, "shirt.jpg", []byte("old")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := d.Save(1, "shirt.jpg", []byte("new")); err != nil {
		t.Fatalf("overwrite Save: %v", err)
	}

	data, err := d.Get(1, "shirt.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("expected overwritten contents, got %q", data)
	}
}

func TestDisk_ListMissingAreaIsEmpty(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	names, err := d.List(42)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty listing, got %v", names)
	}
}

func TestDisk_ListExcludesSnapshotsDir(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Save(1, "shirt.jpg", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := d.SaveSnapshot(1, "slot_1.png", []byte("y")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	names, err := d.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if slices.Contains(names, "snapshots") {
		t.Fatalf("snapshots directory leaked into listing: %v", names)
	}
	if len(names) != 1 {
		t.Fatalf("expected only shirt.jpg, got %v", names)
	}
}

func TestDisk_Delete(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Save(1, "shirt.jpg", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := d.Delete(1, "shirt.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := d.Delete(1, "shirt.jpg"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDisk_Rename(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.Save(1, "processed-shirt.jpg", []byte("processed")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := d.Save(1, "shirt.jpg", []byte("original")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := d.Rename(1, "processed-shirt.jpg", "shirt.jpg"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	data, err := d.Get(1, "shirt.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "processed" {
		t.Fatalf("expected rename to replace target, got %q", data)
	}
	if _, err := d.Get(1, "processed-shirt.jpg"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected source gone after rename, got %v", err)
	}
}

func TestDisk_RejectsUnsafeNames(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	names := []string{"", ".", "..", "../secret", "a/b.jpg", `a\b.jpg`, "/etc/passwd"}
	for _, name := range names {
		if err := d.Save(1, name, []byte("x")); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q): expected ErrInvalidInput, got %v", name, err)
		}
		if _, err := d.Get(1, name); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("Get(%q): expected ErrInvalidInput, got %v", name, err)
		}
		if err := d.Delete(1, name); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("Delete(%q): expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestDisk_Snapshots(t *testing.T) {
	d := storage.NewDisk(t.TempDir())

	if err := d.SaveSnapshot(1, "slot_3.png", []byte("png")); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	data, err := d.GetSnapshot(1, "slot_3.png")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("expected roundtrip, got %q", data)
	}

	if err := d.DeleteSnapshot(1, "slot_3.png"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := d.GetSnapshot(1, "slot_3.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
