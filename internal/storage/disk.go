// Package storage implements per-user file areas on local disk.
//
// Each user owns a directory <root>/<user id> holding their wardrobe
// images, with outfit previews in a snapshots/ subdirectory. Every name
// is validated before it is joined to a path, so a caller can never
// address a file outside its own area.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/somiwear/closet/internal/domain"
)

const snapshotsDir = "snapshots"

// Disk implements domain.FileArea on the local filesystem.
type Disk struct {
	root string
}

// NewDisk creates a Disk rooted at the given directory.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

func (d *Disk) userDir(userID int64) string {
	return filepath.Join(d.root, strconv.FormatInt(userID, 10))
}

// validName rejects names that are empty or could escape the user's area.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: empty filename", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("%w: filename must not contain path separators", domain.ErrInvalidInput)
	}
	return nil
}

// Ensure creates the user's directory if absent. MkdirAll succeeds when
// the directory already exists, so two concurrent first uploads cannot
// race each other into a failure.
func (d *Disk) Ensure(userID int64) error {
	if err := os.MkdirAll(d.userDir(userID), 0o755); err != nil {
		return fmt.Errorf("create user area: %w", err)
	}
	return nil
}

func (d *Disk) Save(userID int64, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := d.Ensure(userID); err != nil {
		return err
	}
	path := filepath.Join(d.userDir(userID), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (d *Disk) List(userID int64) ([]string, error) {
	entries, err := os.ReadDir(d.userDir(userID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list user area: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (d *Disk) Get(userID int64, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.userDir(userID), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (d *Disk) Delete(userID int64, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.userDir(userID), name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (d *Disk) Rename(userID int64, oldName, newName string) error {
	if err := validName(oldName); err != nil {
		return err
	}
	if err := validName(newName); err != nil {
		return err
	}
	dir := d.userDir(userID)
	if err := os.Rename(filepath.Join(dir, oldName), filepath.Join(dir, newName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func (d *Disk) Path(userID int64, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.userDir(userID), name), nil
}

func (d *Disk) SaveSnapshot(userID int64, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	dir := filepath.Join(d.userDir(userID), snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshots area: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (d *Disk) GetSnapshot(userID int64, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.userDir(userID), snapshotsDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (d *Disk) DeleteSnapshot(userID int64, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.userDir(userID), snapshotsDir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
