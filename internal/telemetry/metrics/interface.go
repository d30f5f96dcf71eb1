package metrics

import (
	"context"
)

// Custom type to represent a metric name,
// providing a type-safe way to handle metric names.
type MetricName string

const (
	BuildRequestReceived MetricName = "gallery.build.request.received"
	GalleryBuilt         MetricName = "gallery.built"
	ImageProcessed       MetricName = "gallery.image.processed"
	ThumbCreated         MetricName = "gallery.thumbnail.created"
	ArchiveEntryAdded    MetricName = "gallery.archive.entry.added"
)

type MetricsSvc interface {
	Increment(metric MetricName, attrs map[string]string)
	Shutdown(ctx context.Context) error
}
