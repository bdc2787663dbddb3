package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/somiwear/closet/internal/domain"
	"github.com/somiwear/closet/internal/imaging"
)

// DefaultMaxUploadBytes is the upload size ceiling when none is configured.
const DefaultMaxUploadBytes = 8_000_000

// removeBackgroundTimeout bounds the segmentation call so a pathological
// image cannot pin a request handler forever.
const removeBackgroundTimeout = 30 * time.Second

// allowedExtensions is the canonical upload allow-list. Whether a format
// additionally needs JPEG normalization is a per-format flag owned by the
// imaging package, not a second implicit list.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".avif": true,
	".heic": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// WardrobeService orchestrates the image pipeline: upload gatekeeping,
// per-user file storage, format normalization, and background removal.
type WardrobeService struct {
	files      domain.FileArea
	normalizer imaging.Normalizer
	remover    imaging.BackgroundRemover
	maxBytes   int64
}

// NewWardrobeService creates a new WardrobeService. maxBytes <= 0 selects
// the default upload ceiling.
func NewWardrobeService(files domain.FileArea, normalizer imaging.Normalizer, remover imaging.BackgroundRemover, maxBytes int64) *WardrobeService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &WardrobeService{
		files:      files,
		normalizer: normalizer,
		remover:    remover,
		maxBytes:   maxBytes,
	}
}

// MaxUploadBytes returns the configured upload size ceiling.
func (s *WardrobeService) MaxUploadBytes() int64 {
	return s.maxBytes
}

// SanitizeFilename reduces a client-supplied filename to a safe base name:
// any path components are stripped and characters outside [A-Za-z0-9._-]
// are replaced with underscores. Returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	// Strip directories whichever separator the client's OS used.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ".")
	if name == "" || strings.Trim(name, "_") == "" {
		return ""
	}
	return name
}

// Upload validates the submission, stores it in the user's area, and
// normalizes non-baseline formats to JPEG. It returns the filename the
// image is stored under, which differs from the input when normalization
// replaced the extension. Nothing is written when validation fails, and a
// file that fails normalization is removed again before the error returns.
func (s *WardrobeService) Upload(ctx context.Context, userID int64, filename string, data []byte) (string, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return "", fmt.Errorf("%w: missing filename", domain.ErrInvalidInput)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}

	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: file exceeds %d byte limit", domain.ErrInvalidInput, s.maxBytes)
	}

	if err := s.files.Save(userID, name, data); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	if !imaging.NeedsNormalization(name) {
		return name, nil
	}

	path, err := s.files.Path(userID, name)
	if err != nil {
		return "", err
	}

	jpgPath, err := s.normalizer.ConvertToJPEG(path)
	if err != nil {
		// The raw file is useless if it cannot be converted; remove it so a
		// failed upload leaves no trace in the user's listing.
		if delErr := s.files.Delete(userID, name); delErr != nil {
			return "", errors.Join(fmt.Errorf("%w: convert image: %v", domain.ErrInvalidInput, err), delErr)
		}
		return "", fmt.Errorf("%w: convert image: %v", domain.ErrInvalidInput, err)
	}

	return filepath.Base(jpgPath), nil
}

// List enumerates the filenames in the user's area.
func (s *WardrobeService) List(userID int64) ([]string, error) {
	return s.files.List(userID)
}

// Read serves file bytes only when the requester owns the area. The check
// runs here so every read path shares it regardless of entry point.
func (s *WardrobeService) Read(ownerID int64, name string, requesterID int64) ([]byte, error) {
	if requesterID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return s.files.Get(ownerID, name)
}

// ReadSnapshot serves outfit preview bytes with the same ownership rule as
// Read.
func (s *WardrobeService) ReadSnapshot(ownerID int64, name string, requesterID int64) ([]byte, error) {
	if requesterID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return s.files.GetSnapshot(ownerID, name)
}

// Delete removes a file from the user's own area.
func (s *WardrobeService) Delete(userID int64, name string) error {
	return s.files.Delete(userID, name)
}

// RemoveBackground runs background removal on one of the user's stored
// files, replacing it in place. The processed result is written to a
// processed-<name> sibling first and renamed over the original only on
// success; any failure (missing file, decode error, timeout) leaves the
// original untouched and removes the intermediate.
func (s *WardrobeService) RemoveBackground(ctx context.Context, userID int64, name string) error {
	inPath, err := s.files.Path(userID, name)
	if err != nil {
		return err
	}
	tmpName := "processed-" + name
	outPath, err := s.files.Path(userID, tmpName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, removeBackgroundTimeout)
	defer cancel()

	if err := s.remover.RemoveBackground(ctx, inPath, outPath); err != nil {
		if delErr := s.files.Delete(userID, tmpName); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
			err = errors.Join(err, delErr)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("remove background: %w", err)
	}

	if err := s.files.Rename(userID, tmpName, name); err != nil {
		return fmt.Errorf("replace original: %w", err)
	}
	return nil
}
