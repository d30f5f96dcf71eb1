package gallery

import (
	"time"
)

const mebibyte = 1 << 20

// Manifest is the render context of a gallery: run metadata plus the
// ordered list of images.
type Manifest struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	GeneratedAt string `json:"generated_at"`

	// Empty when no archive is produced
	DownloadFilename string `json:"download_filename,omitempty"`
	DownloadSizeMiB  int64  `json:"download_size_mib,omitempty"`

	Images []Item `json:"images"`
}

type ManifestParams struct {
	Title       string
	Version     string
	GeneratedAt time.Time

	// Archive file name and size in bytes. ArchiveName is empty when
	// archiving is disabled.
	ArchiveName string
	ArchiveSize int64

	Items []Item
}

// HasDownload reports whether the gallery links an archive.
func (m *Manifest) HasDownload() bool {
	return m.DownloadFilename != ""
}

// NewManifest assembles the manifest. Items keep the order they are given
// in.
func NewManifest(p ManifestParams) *Manifest {
	m := &Manifest{
		Title:       p.Title,
		Version:     p.Version,
		GeneratedAt: p.GeneratedAt.Format(time.RFC3339),
		Images:      p.Items,
	}

	if m.Images == nil {
		m.Images = []Item{}
	}

	if p.ArchiveName != "" {
		m.DownloadFilename = p.ArchiveName
		m.DownloadSizeMiB = SizeMiB(p.ArchiveSize)
	}

	return m
}

// SizeMiB converts a size in bytes to whole mebibytes, rounding up.
func SizeMiB(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + mebibyte - 1) / mebibyte
}
