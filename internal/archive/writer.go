package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var ErrClosed = errors.New("archive already closed")

// Writer appends stored (uncompressed) entries to a single zip file.
// It is safe for concurrent use: each Append writes one whole entry
// while holding the lock, so entries never interleave.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	zw       *zip.Writer
	modified time.Time
	entries  int
	closed   bool
}

// Create truncates or creates the archive at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}

	return &Writer{
		path:     path,
		file:     f,
		zw:       zip.NewWriter(f),
		modified: time.Now(),
	}, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Append adds one entry named name holding data.
func (w *Writer) Append(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to archive %s: %w", name, w.path, err)
	}

	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive %s: %w", name, w.path, err)
	}

	w.entries++
	slog.Debug("Archive entry added", "archive", w.path, "name", name, "size", len(data))
	return nil
}

// Entries returns the number of entries appended so far.
func (w *Writer) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// Close writes the central directory and closes the underlying file. An
// archive without entries is still a valid, empty archive.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize archive %s: %w", w.path, err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close archive %s: %w", w.path, err)
	}

	return nil
}

// Discard closes the archive and removes it from disk. Used when a run
// fails, so a partial archive is never mistaken for a complete one.
func (w *Writer) Discard() error {
	closeErr := w.Close()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove archive %s: %w", w.path, err)
	}
	return closeErr
}

// FileName derives the archive file name from a gallery title: spaces
// become underscores and anything outside [A-Za-z0-9._-] is dropped.
func FileName(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	b.WriteString(".zip")
	return b.String()
}
