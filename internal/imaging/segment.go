package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
)

// BackgroundRemover produces a copy of an image with its background
// suppressed. Implementations are treated as replaceable adapters; a
// model-backed segmenter can stand in for the default one without
// touching the orchestration above it.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, inputPath, outputPath string) error
}

// BorderSegmenter removes backgrounds by flood-filling from the image
// border: pixels reachable from the edge whose color stays within
// Threshold of the dominant border color are painted white. This works
// well for the catalog-style clothing photos the app ingests, where the
// subject sits on a roughly uniform backdrop.
type BorderSegmenter struct {
	// Threshold is the maximum Euclidean RGB distance (0-441) from the
	// dominant border color for a pixel to count as background.
	Threshold float64
}

// NewBorderSegmenter returns a segmenter with the default threshold.
func NewBorderSegmenter() *BorderSegmenter {
	return &BorderSegmenter{Threshold: 48}
}

// ctxCheckInterval controls how many pixels are processed between
// context checks during the fill.
const ctxCheckInterval = 4096

// RemoveBackground reads the image at inputPath, suppresses its
// background, and writes the result to outputPath as JPEG. The input is
// never modified. The fill honors ctx so a deadline imposed by the
// caller interrupts a pathological image instead of blocking the request
// indefinitely.
func (s *BorderSegmenter) RemoveBackground(ctx context.Context, inputPath, outputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}

	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	result, err := s.segment(ctx, img)
	if err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := jpeg.Encode(out, result, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("encode output: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func (s *BorderSegmenter) segment(ctx context.Context, img image.Image) (*image.RGBA, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}

	bg := borderMean(rgba)

	// Flood fill inward from every border pixel close to the backdrop color.
	type point struct{ x, y int }
	var queue []point
	mask := make([]bool, w*h)

	push := func(x, y int) {
		if mask[y*w+x] {
			return
		}
		if colorDistance(rgba.RGBAAt(x, y), bg) > s.Threshold {
			return
		}
		mask[y*w+x] = true
		queue = append(queue, point{x, y})
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	processed := 0
	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		processed++
		if processed%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("segmentation interrupted: %w", err)
			}
		}

		if p.x > 0 {
			push(p.x-1, p.y)
		}
		if p.x < w-1 {
			push(p.x+1, p.y)
		}
		if p.y > 0 {
			push(p.x, p.y-1)
		}
		if p.y < h-1 {
			push(p.x, p.y+1)
		}
	}

	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				rgba.SetRGBA(x, y, white)
			}
		}
	}
	return rgba, nil
}

// borderMean averages the colors of the outermost pixel ring.
func borderMean(img *image.RGBA) color.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var rSum, gSum, bSum, n uint64
	add := func(c color.RGBA) {
		rSum += uint64(c.R)
		gSum += uint64(c.G)
		bSum += uint64(c.B)
		n++
	}

	for x := 0; x < w; x++ {
		add(img.RGBAAt(x, 0))
		if h > 1 {
			add(img.RGBAAt(x, h-1))
		}
	}
	for y := 1; y < h-1; y++ {
		add(img.RGBAAt(0, y))
		if w > 1 {
			add(img.RGBAAt(w-1, y))
		}
	}

	return color.RGBA{
		R: uint8(rSum / n),
		G: uint8(gSum / n),
		B: uint8(bSum / n),
		A: 255,
	}
}

func colorDistance(a, b color.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
