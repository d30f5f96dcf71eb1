// Package imgtest builds small in-memory images for package tests.
package imgtest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

const orientationTag = 0x0112

// Gradient returns a w x h image whose pixels differ along both axes, so
// rotations are observable.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// JPEG encodes a w x h gradient as JPEG.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), nil); err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// WithOrientation inserts an EXIF APP1 segment holding a SHORT
// orientation tag with the given value right after the SOI marker.
func WithOrientation(t testing.TB, jpg []byte, value uint16) []byte {
	t.Helper()
	var entry bytes.Buffer
	binary.Write(&entry, binary.BigEndian, uint16(orientationTag))
	binary.Write(&entry, binary.BigEndian, uint16(3)) // SHORT
	binary.Write(&entry, binary.BigEndian, uint32(1))
	binary.Write(&entry, binary.BigEndian, value)
	binary.Write(&entry, binary.BigEndian, uint16(0))
	return insertAPP1(t, jpg, entry.Bytes())
}

// WithTextOrientation is like WithOrientation but stores the value as an
// ASCII string, which is not a valid shape for the tag.
func WithTextOrientation(t testing.TB, jpg []byte, value byte) []byte {
	t.Helper()
	var entry bytes.Buffer
	binary.Write(&entry, binary.BigEndian, uint16(orientationTag))
	binary.Write(&entry, binary.BigEndian, uint16(2)) // ASCII
	binary.Write(&entry, binary.BigEndian, uint32(2))
	entry.Write([]byte{value, 0, 0, 0})
	return insertAPP1(t, jpg, entry.Bytes())
}

func insertAPP1(t testing.TB, jpg []byte, ifdEntry []byte) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Fatal("not a jpeg: missing SOI marker")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2a")
	binary.Write(&tiff, binary.BigEndian, uint32(8))
	binary.Write(&tiff, binary.BigEndian, uint16(1))
	tiff.Write(ifdEntry)
	binary.Write(&tiff, binary.BigEndian, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Size decodes the dimensions of an encoded image.
func Size(t testing.TB, data []byte) image.Point {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode image config: %v", err)
	}
	return image.Pt(cfg.Width, cfg.Height)
}
