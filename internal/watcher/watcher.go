package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giobyte8/gallerist/internal/gallery"
	"github.com/giobyte8/gallerist/internal/models"
)

const DefaultDebounce = 500 * time.Millisecond

// Handler receives the image changes of one burst, in arrival order.
type Handler func(ctx context.Context, events []models.InputChangeEvent) error

// Watcher monitors an input directory and calls its handler once changes
// to JPEG files settle.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending []models.InputChangeEvent
	timer   *time.Timer
}

func New(dir string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		fsw:      fsw,
	}, nil
}

// Run processes file system events until ctx is done or the watcher is
// closed. Handler errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("Watching directory", "path", w.dir, "debounce", w.debounce)

	fire := make(chan struct{}, 1)
	defer w.stopTimer()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			change, ok := toChangeEvent(event)
			if !ok {
				continue
			}
			slog.Debug("Input changed", "event", change.EventType, "path", change.FilePath)
			w.schedule(change, fire)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)

		case <-fire:
			events := w.drain()
			if len(events) == 0 {
				continue
			}
			if err := w.handler(ctx, events); err != nil {
				slog.Error("Failed to handle input changes", "error", err, "changes", len(events))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// schedule queues change and restarts the debounce timer.
func (w *Watcher) schedule(change models.InputChangeEvent, fire chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, change)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) drain() []models.InputChangeEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	events := w.pending
	w.pending = nil
	return events
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// toChangeEvent keeps events on source images. Hidden files, which
// include in-flight temporary files, and generated thumbnails are
// ignored.
func toChangeEvent(event fsnotify.Event) (models.InputChangeEvent, bool) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !gallery.IsJPEGName(name) {
		return models.InputChangeEvent{}, false
	}
	if _, isThumb := gallery.StemFromThumb(name); isThumb {
		return models.InputChangeEvent{}, false
	}

	var eventType models.InputEventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = models.InputCreated
	case event.Has(fsnotify.Write):
		eventType = models.InputModified
	case event.Has(fsnotify.Remove):
		eventType = models.InputRemoved
	case event.Has(fsnotify.Rename):
		eventType = models.InputRenamed
	default:
		return models.InputChangeEvent{}, false
	}

	return models.InputChangeEvent{
		EventType: eventType,
		FilePath:  event.Name,
	}, true
}
