// Package imaging converts uploads to browser-baseline JPEG and provides
// background removal for wardrobe photos.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/heic"
	"golang.org/x/image/webp"
)

const jpegQuality = 90

// needsNormalization flags the accepted formats browsers cannot be relied
// on to display. The upload allow-list lives in the wardrobe service; this
// is the orthogonal "convert before use" flag.
var needsNormalization = map[string]bool{
	".webp": true,
	".avif": true,
	".heic": true,
}

// NeedsNormalization reports whether the named file must be converted to
// JPEG before it is displayed or processed. Extensions are compared
// case-insensitively, so shirt.HEIC is treated like shirt.heic.
func NeedsNormalization(name string) bool {
	return needsNormalization[strings.ToLower(filepath.Ext(name))]
}

// Normalizer converts an image file to baseline JPEG and returns the path
// of the converted file.
type Normalizer interface {
	ConvertToJPEG(path string) (string, error)
}

// JPEGNormalizer implements Normalizer with pure-Go decoders for WEBP,
// AVIF and HEIC sources.
type JPEGNormalizer struct{}

// ConvertToJPEG decodes the file at path, flattens any alpha channel onto
// white, and writes an RGB JPEG at the sibling path with a .jpg extension.
// The original is removed only after the JPEG has been written, so a
// decode or write failure leaves the input untouched for the caller to
// clean up.
func (JPEGNormalizer) ConvertToJPEG(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	img, err := decodeByExtension(f, path)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	outPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}

	if err := jpeg.Encode(out, flatten(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("close output: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove original: %w", err)
	}
	return outPath, nil
}

func decodeByExtension(f *os.File, path string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		return webp.Decode(f)
	case ".avif":
		return avif.Decode(f)
	case ".heic":
		return heic.Decode(f)
	default:
		img, _, err := image.Decode(f)
		return img, err
	}
}

// flatten composites the image over a white background so transparency
// survives the conversion to JPEG, which has no alpha channel.
func flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Over)
	return rgba
}
