package imgproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/giobyte8/gallerist/internal/orientation"
)

// Images whose width/height ratio is strictly greater than this are
// panoramas.
const PanoramaRatio = 2.0

// Thumbnails may be up to this many times wider than they are tall.
const ThumbWidthFactor = 4

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Options holds everything needed to transform one image.
type Options struct {

	// Bounding box the output must fit in. Aspect ratio is always
	// preserved and images are never upscaled.
	MaxWidth  int
	MaxHeight int

	// Corrective rotation, usually read from the image EXIF data.
	Orientation orientation.Orientation

	// When set, panoramas are re-encoded without being rotated or
	// resized.
	PanoramaExempt bool
}

// ThumbnailOptions returns the options for a thumbnail bounded by height.
// Panoramas are never exempted from thumbnail resizing.
func ThumbnailOptions(height int, o orientation.Orientation) Options {
	return Options{
		MaxWidth:    ThumbWidthFactor * height,
		MaxHeight:   height,
		Orientation: o,
	}
}

// FullOptions returns the options for a downscaled full-size image.
func FullOptions(maxSize int, o orientation.Orientation, panoramaExempt bool) Options {
	return Options{
		MaxWidth:       maxSize,
		MaxHeight:      maxSize,
		Orientation:    o,
		PanoramaExempt: panoramaExempt,
	}
}

// TransformError identifies the image and the step that failed.
type TransformError struct {
	Path string
	Op   string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to %s image %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

type Transformer interface {

	// Transform decodes src, applies opts and returns the image
	// re-encoded as JPEG. path is only used to identify the image
	// in errors.
	Transform(ctx context.Context, path string, src []byte, opts Options) ([]byte, error)
}

// IsPanorama reports whether an image of the given size is a panorama.
func IsPanorama(width, height int) bool {
	if height <= 0 {
		return false
	}
	return float64(width)/float64(height) > PanoramaRatio
}

// NeedsDownscale reports whether an image of the given size exceeds
// maxSize on its longest side. A maxSize <= 0 disables downscaling.
func NeedsDownscale(width, height, maxSize int) bool {
	if maxSize <= 0 {
		return false
	}
	return max(width, height) > maxSize
}
