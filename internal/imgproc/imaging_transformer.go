package imgproc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	"github.com/giobyte8/gallerist/internal/orientation"
)

// Kernel used for every resize.
var ResampleFilter = imaging.CatmullRom

type ImagingTransformer struct{}

func NewImagingTransformer() *ImagingTransformer {
	return &ImagingTransformer{}
}

func (t *ImagingTransformer) Transform(
	ctx context.Context,
	path string,
	src []byte,
	opts Options,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := t.decode(path, src)
	if err != nil {
		return nil, err
	}

	origWidth := img.Bounds().Dx()
	origHeight := img.Bounds().Dy()

	if opts.PanoramaExempt && IsPanorama(origWidth, origHeight) {
		slog.Debug(
			"Panorama exempted from resizing",
			"path", path,
			"width", origWidth,
			"height", origHeight,
		)
	} else {
		img = rotate(img, opts.Orientation)
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, ResampleFilter)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, &TransformError{Path: path, Op: "encode", Err: err}
	}

	slog.Debug(
		"Image transformed",
		"path", path,
		"origWidth", origWidth,
		"origHeight", origHeight,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"size", buf.Len(),
	)
	return buf.Bytes(), nil
}

func (t *ImagingTransformer) decode(path string, src []byte) (image.Image, error) {
	if !filetype.IsImage(src) {
		return nil, &TransformError{
			Path: path,
			Op:   "decode",
			Err:  ErrUnsupportedFormat,
		}
	}

	// Orientation is applied by us, not by the decoder
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &TransformError{Path: path, Op: "decode", Err: err}
	}

	return img, nil
}

// Dimensions reads the pixel size from the image header without decoding
// the pixel data.
func Dimensions(path string, src []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return 0, 0, &TransformError{
			Path: path,
			Op:   "read dimensions of",
			Err:  err,
		}
	}

	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, &TransformError{
			Path: path,
			Op:   "read dimensions of",
			Err: fmt.Errorf(
				"invalid image dimensions: width=%d, height=%d",
				cfg.Width,
				cfg.Height,
			),
		}
	}

	return cfg.Width, cfg.Height, nil
}

func rotate(img image.Image, o orientation.Orientation) image.Image {
	switch o {
	case orientation.Deg90:
		return imaging.Rotate90(img)
	case orientation.Deg180:
		return imaging.Rotate180(img)
	case orientation.Deg270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}
