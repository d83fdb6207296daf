package overlay

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/tayjaybabee/jet-bridge/internal/model"
)

// Watcher serves the overlay from a file and reloads it when the file
// changes. A reload that fails keeps the previous overlay.
type Watcher struct {
	path     string
	current  atomic.Pointer[Static]
	onChange func(*Static)
	logger   *slog.Logger
}

// NewWatcher loads path. An unreadable or malformed file yields an empty
// overlay and a warning.
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{path: path, logger: logger}
	s, err := Load(path)
	if err != nil {
		logger.Warn("overlay file ignored", "path", path, "error", err)
		s = Empty()
	}
	w.current.Store(s)
	return w
}

// OnChange registers fn to be called after each successful reload.
// It must be called before Run.
func (w *Watcher) OnChange(fn func(*Static)) {
	w.onChange = fn
}

// Current returns the overlay in effect.
func (w *Watcher) Current() *Static {
	return w.current.Load()
}

// Reload re-reads the file.
func (w *Watcher) Reload() error {
	s, err := Load(w.path)
	if err != nil {
		return err
	}
	w.current.Store(s)
	if w.onChange != nil {
		w.onChange(s)
	}
	return nil
}

// Run watches the file's directory until ctx is done. Editors often
// replace files instead of writing them, so the directory is watched and
// events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	target := filepath.Clean(w.path)
	w.logger.Info("watching overlay file", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("overlay reload failed, keeping previous", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("overlay reloaded", "path", w.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("overlay watcher error", "error", err)
		}
	}
}

// AdditionalDescription implements describe.Overlay.
func (w *Watcher) AdditionalDescription(table string) map[string]any {
	return w.Current().AdditionalDescription(table)
}

// Hidden implements describe.Overlay.
func (w *Watcher) Hidden(table string) bool {
	return w.Current().Hidden(table)
}

// RelationOverrides implements describe.Overlay.
func (w *Watcher) RelationOverrides(table string) []model.Relation {
	return w.Current().RelationOverrides(table)
}
