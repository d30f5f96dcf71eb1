package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/giobyte8/gallerist/internal/archive"
	"github.com/giobyte8/gallerist/internal/gallery"
	"github.com/giobyte8/gallerist/internal/imgproc"
	"github.com/giobyte8/gallerist/internal/models"
	"github.com/giobyte8/gallerist/internal/orientation"
	"github.com/giobyte8/gallerist/internal/telemetry"
	"github.com/giobyte8/gallerist/internal/telemetry/metrics"
)

const IndexFileName = "index.html"

var ErrInvalidDir = errors.New("invalid directory")

type GalleryConfig struct {
	Title   string
	Version string

	ThumbHeight int
	MaxSize     int
	Panorama    bool

	NoArchive      bool
	NoThumbnails   bool
	SkipProcessing bool

	Workers int
}

// Renderer turns a manifest into the gallery index page and provides the
// assets the page links to.
type Renderer interface {
	Render(m *gallery.Manifest) ([]byte, error)
	WriteAssets(outputDir string) error
}

// ItemError reports the source image whose processing aborted a build.
type ItemError struct {
	Path string
	Err  error
}

func (e *ItemError) Error() string {
	var transformErr *imgproc.TransformError
	if errors.As(e.Err, &transformErr) && transformErr.Path == e.Path {
		return e.Err.Error()
	}
	return fmt.Sprintf("failed to process %s: %v", e.Path, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

type GalleryService struct {
	config      GalleryConfig
	transformer imgproc.Transformer
	renderer    Renderer
	telemetry   *telemetry.TelemetrySvc
	now         func() time.Time
}

func NewGalleryService(
	config GalleryConfig,
	transformer imgproc.Transformer,
	renderer Renderer,
	telemetry *telemetry.TelemetrySvc,
) *GalleryService {
	return &GalleryService{
		config:      config,
		transformer: transformer,
		renderer:    renderer,
		telemetry:   telemetry,
		now:         time.Now,
	}
}

// ProcessBuildRequest validates a build request and publishes the gallery
// it describes.
func (s *GalleryService) ProcessBuildRequest(
	ctx context.Context,
	req models.BuildRequest,
) error {
	slog.Debug(
		"Processing gallery build request",
		"buildRequestId", req.BuildRequestId,
		"inputDir", req.InputDir,
		"outputDir", req.OutputDir,
	)

	if req.InputDir == "" || req.OutputDir == "" {
		return fmt.Errorf(
			"%w: build request %s needs both input and output directories",
			ErrInvalidDir,
			req.BuildRequestId,
		)
	}

	_, err := s.Publish(ctx, req)
	return err
}

// Publish builds the gallery and writes its index page and static assets.
func (s *GalleryService) Publish(
	ctx context.Context,
	req models.BuildRequest,
) (*gallery.Manifest, error) {
	if err := PrepareDirs(req.InputDir, req.OutputDir); err != nil {
		return nil, err
	}

	manifest, err := s.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	index, err := s.renderer.Render(manifest)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(req.OutputDir, IndexFileName)
	if err := writeFile(indexPath, index); err != nil {
		return nil, err
	}

	if err := s.renderer.WriteAssets(req.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to write static assets: %w", err)
	}

	s.telemetry.Metrics().Increment(metrics.GalleryBuilt, nil)
	slog.Info(
		"Gallery written",
		"index", indexPath,
		"images", len(manifest.Images),
	)
	return manifest, nil
}

// Build processes every image of the input directory and returns the
// manifest of the resulting gallery. Both directories must exist.
func (s *GalleryService) Build(
	ctx context.Context,
	req models.BuildRequest,
) (*gallery.Manifest, error) {
	runID := req.BuildRequestId
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	title := req.Title
	if title == "" {
		title = s.config.Title
	}

	sources, err := Discover(req.InputDir)
	if err != nil {
		return nil, err
	}
	slog.Info(
		"Discovered images",
		"runId", runID,
		"count", len(sources),
		"inputDir", req.InputDir,
	)

	var archiveName string
	var arch *archive.Writer
	if !s.config.NoArchive {
		archiveName = archive.FileName(title)
		if !s.config.SkipProcessing {
			arch, err = archive.Create(filepath.Join(req.OutputDir, archiveName))
			if err != nil {
				return nil, err
			}
		}
	}

	items, err := s.processAll(ctx, req.OutputDir, sources, arch)
	if err != nil {
		if arch != nil {
			if discardErr := arch.Discard(); discardErr != nil {
				slog.Error("Failed to discard partial archive", "error", discardErr)
			}
		}
		return nil, err
	}

	var archiveSize int64
	if archiveName != "" {
		archiveSize, err = s.finalizeArchive(
			arch,
			filepath.Join(req.OutputDir, archiveName),
		)
		if err != nil {
			return nil, err
		}
	}

	return gallery.NewManifest(gallery.ManifestParams{
		Title:       title,
		Version:     s.config.Version,
		GeneratedAt: s.now(),
		ArchiveName: archiveName,
		ArchiveSize: archiveSize,
		Items:       items,
	}), nil
}

// Discover lists the JPEG files directly inside dir, sorted by path.
// Anything else, including subdirectories and symlinks, is ignored.
func Discover(dir string) ([]gallery.SourceImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory %s: %w", dir, err)
	}

	var sources []gallery.SourceImage
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !gallery.IsJPEGName(entry.Name()) {
			continue
		}

		src, err := gallery.NewSourceImage(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})

	warnStemCollisions(sources)
	return sources, nil
}

// PrepareDirs checks the input directory and creates the output directory
// when missing.
func PrepareDirs(inputDir, outputDir string) error {
	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: input directory %s does not exist", ErrInvalidDir, inputDir)
		}
		return fmt.Errorf("failed to stat input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: input path %s is not a directory", ErrInvalidDir, inputDir)
	}

	info, err = os.Stat(outputDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("Creating output directory", "path", outputDir)
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat output directory %s: %w", outputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output path %s is not a directory", ErrInvalidDir, outputDir)
	}

	return nil
}

func (s *GalleryService) processAll(
	ctx context.Context,
	outputDir string,
	sources []gallery.SourceImage,
	arch *archive.Writer,
) ([]gallery.Item, error) {

	// Each worker writes only its own slot, so items keep discovery
	// order whatever the completion order is
	items := make([]gallery.Item, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.Workers, 1))

	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			item, err := s.processItem(gctx, outputDir, src, arch)
			if err != nil {
				return &ItemError{Path: src.Path, Err: err}
			}

			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Items not launched before a cancellation are missing
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gallery build cancelled: %w", err)
	}
	return items, nil
}

func (s *GalleryService) processItem(
	ctx context.Context,
	outputDir string,
	src gallery.SourceImage,
	arch *archive.Writer,
) (gallery.Item, error) {
	item, err := gallery.NewItem(src.Path)
	if err != nil {
		return item, err
	}

	if s.config.SkipProcessing {
		return item, nil
	}

	slog.Info("Processing image", "name", item.FilenameFull)

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return item, fmt.Errorf("failed to read image %s: %w", src.Path, err)
	}
	orient := orientation.ReadBytes(data)

	if !s.config.NoThumbnails {
		thumb, err := s.transformer.Transform(
			ctx,
			src.Path,
			data,
			imgproc.ThumbnailOptions(s.config.ThumbHeight, orient),
		)
		if err != nil {
			return item, err
		}

		if err := writeFile(filepath.Join(outputDir, item.FilenameThumb), thumb); err != nil {
			return item, err
		}

		s.telemetry.Metrics().Increment(metrics.ThumbCreated, nil)
		slog.Debug(
			"Thumbnail created",
			"file", item.FilenameThumb,
			"origSize", len(data),
			"thumbSize", len(thumb),
		)
	}

	full, err := s.fullImage(ctx, src.Path, data, orient)
	if err != nil {
		return item, err
	}

	if err := writeFile(filepath.Join(outputDir, item.FilenameFull), full); err != nil {
		return item, err
	}

	if arch != nil {
		if err := arch.Append(item.FilenameFull, full); err != nil {
			return item, err
		}
		s.telemetry.Metrics().Increment(metrics.ArchiveEntryAdded, nil)
	}

	s.telemetry.Metrics().Increment(
		metrics.ImageProcessed,
		map[string]string{"orientation": orient.String()},
	)
	return item, nil
}

// fullImage downscales the image when it exceeds the configured max size.
// Otherwise the original bytes are kept, so no generation loss occurs.
func (s *GalleryService) fullImage(
	ctx context.Context,
	path string,
	data []byte,
	orient orientation.Orientation,
) ([]byte, error) {
	width, height, err := imgproc.Dimensions(path, data)
	if err != nil {
		return nil, err
	}

	if !imgproc.NeedsDownscale(width, height, s.config.MaxSize) {
		return data, nil
	}

	slog.Debug(
		"Downscaling full size image",
		"path", path,
		"width", width,
		"height", height,
		"maxSize", s.config.MaxSize,
	)
	return s.transformer.Transform(
		ctx,
		path,
		data,
		imgproc.FullOptions(s.config.MaxSize, orient, s.config.Panorama),
	)
}

// finalizeArchive closes the archive written during this run and returns
// its size. In skip processing mode no archive is written: an archive
// left by an earlier run is kept, otherwise an empty one is created.
func (s *GalleryService) finalizeArchive(
	arch *archive.Writer,
	path string,
) (int64, error) {
	if arch != nil {
		if err := arch.Close(); err != nil {
			os.Remove(path)
			return 0, err
		}
		slog.Info("Archive written", "path", path, "entries", arch.Entries())
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		empty, err := archive.Create(path)
		if err != nil {
			return 0, err
		}
		if err := empty.Close(); err != nil {
			return 0, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}
	return info.Size(), nil
}

func warnStemCollisions(sources []gallery.SourceImage) {
	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		name := filepath.Base(src.Path)
		if other, ok := seen[src.Stem]; ok {
			slog.Warn(
				"Images share a stem, their thumbnails overwrite each other",
				"image", name,
				"other", other,
				"thumbnail", src.Stem+gallery.ThumbSuffix,
			)
			continue
		}
		seen[src.Stem] = name
	}
}

// writeFile writes data through a temporary file in the same directory,
// so readers never observe a partially written file.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+strings.TrimPrefix(filepath.Base(path), ".")+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Chmod(f.Name(), 0644); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to set permissions of %s: %w", path, err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to move file to %s: %w", path, err)
	}
	return nil
}
