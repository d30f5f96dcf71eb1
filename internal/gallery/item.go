package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ThumbSuffix is appended to an image stem to name its thumbnail.
const ThumbSuffix = ".thumb.jpg"

// Exact suffixes of the files picked up as gallery images.
var jpegSuffixes = []string{".jpg", ".JPG"}

var ErrUnnameable = errors.New("cannot derive file name")

// SourceImage is one input photograph, identified by its path.
type SourceImage struct {
	Path string
	Stem string
}

// Item holds the public file names of one gallery image.
type Item struct {
	FilenameFull  string `json:"filename_full"`
	FilenameThumb string `json:"filename_thumb"`
}

// IsJPEGName reports whether name carries one of the recognised JPEG
// suffixes.
func IsJPEGName(name string) bool {
	for _, suffix := range jpegSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// NewSourceImage validates path and derives its stem.
func NewSourceImage(path string) (SourceImage, error) {
	_, stem, err := splitName(path)
	if err != nil {
		return SourceImage{}, err
	}

	return SourceImage{Path: path, Stem: stem}, nil
}

// NewItem derives the full size and thumbnail file names for the image at
// path. Files sharing a stem, like a.jpg and a.JPG, get the same
// thumbnail name.
func NewItem(path string) (Item, error) {
	name, stem, err := splitName(path)
	if err != nil {
		return Item{}, err
	}

	return Item{
		FilenameFull:  name,
		FilenameThumb: stem + ThumbSuffix,
	}, nil
}

// StemFromThumb recovers the stem a thumbnail name was derived from.
func StemFromThumb(thumbName string) (string, bool) {
	stem, ok := strings.CutSuffix(thumbName, ThumbSuffix)
	if !ok || stem == "" {
		return "", false
	}
	return stem, true
}

func splitName(path string) (string, string, error) {
	if path == "" || os.IsPathSeparator(path[len(path)-1]) {
		return "", "", fmt.Errorf("%w for path %q", ErrUnnameable, path)
	}

	name := filepath.Base(path)
	if name == "." || name == ".." || os.IsPathSeparator(name[0]) {
		return "", "", fmt.Errorf("%w for path %q", ErrUnnameable, path)
	}

	// A leading dot does not start an extension: ".jpg" is all stem
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		stem = name
	}

	return name, stem, nil
}
