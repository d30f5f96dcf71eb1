package orientation

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the corrective rotation that has to be applied to an
// image so it displays upright. Mirrored EXIF orientations are not
// represented, they are treated as Deg0.
type Orientation int

const (
	Deg0 Orientation = iota
	Deg90
	Deg180
	Deg270
)

// Degrees returns the counter-clockwise rotation angle.
func (o Orientation) Degrees() int {
	switch o {
	case Deg90:
		return 90
	case Deg180:
		return 180
	case Deg270:
		return 270
	default:
		return 0
	}
}

func (o Orientation) String() string {
	switch o {
	case Deg90:
		return "90deg"
	case Deg180:
		return "180deg"
	case Deg270:
		return "270deg"
	default:
		return "0deg"
	}
}

// FromTag maps the value of the EXIF orientation tag to a corrective
// rotation. Value 6 means the camera was turned 90 degrees clockwise, so
// the image has to be turned 270 degrees counter-clockwise, and so on.
func FromTag(value int) Orientation {
	switch value {
	case 1:
		return Deg0
	case 3:
		return Deg180
	case 6:
		return Deg270
	case 8:
		return Deg90
	default:
		return Deg0
	}
}

// Read extracts the orientation from the primary IFD of the EXIF block
// found in r. It never fails: missing, malformed or unexpected tags all
// yield Deg0.
func Read(r io.Reader) Orientation {
	x, err := exif.Decode(r)
	if x == nil {
		slog.Debug("No EXIF data found", "error", err)
		return Deg0
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		slog.Debug("No orientation tag in EXIF data", "error", err)
		return Deg0
	}

	// Fails for tags that are not integer lists
	value, err := tag.Int(0)
	if err != nil {
		slog.Debug("Orientation tag is not numeric", "error", err)
		return Deg0
	}

	return FromTag(value)
}

// ReadBytes is Read over an in-memory image.
func ReadBytes(data []byte) Orientation {
	return Read(bytes.NewReader(data))
}

// ReadFile opens the image at path and reads its orientation.
func ReadFile(path string) Orientation {
	f, err := os.Open(path)
	if err != nil {
		slog.Debug("Failed to open image for orientation", "path", path, "error", err)
		return Deg0
	}
	defer f.Close()

	return Read(f)
}
