package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/taskforge/taskforge/internal/logging"
)

// Watcher hot-reloads plugins when their source files change on disk.
// Writes and creates trigger a reload, removals trigger an unload.
type Watcher struct {
	manager  *Manager
	fs       *fsnotify.Watcher
	logger   *logging.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher over the given plugin directories.
func NewWatcher(manager *Manager, dirs ...string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating plugin watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watching plugin dir %s: %w", dir, err)
		}
	}
	return &Watcher{
		manager:  manager,
		fs:       fs,
		logger:   logging.Component("plugin-watcher"),
		debounce: 200 * time.Millisecond,
	}, nil
}

// Run processes filesystem events until the context is cancelled. Editors
// often emit bursts of writes for a single save, so events for the same
// path are debounced before reloading. A single timer is armed to the
// earliest pending deadline, so a burst of writes yields exactly one
// reload per path.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]time.Time)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	rearm := func() {
		if armed {
			if !timer.Stop() {
				<-timer.C
			}
			armed = false
		}
		var next time.Time
		for _, due := range pending {
			if next.IsZero() || due.Before(next) {
				next = due
			}
		}
		if !next.IsZero() {
			timer.Reset(time.Until(next))
			armed = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			if armed {
				timer.Stop()
			}
			return ctx.Err()

		case <-timer.C:
			armed = false
			now := time.Now()
			for path, due := range pending {
				if due.After(now) {
					continue
				}
				delete(pending, path)
				w.reload(path)
			}
			rearm()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !isPluginFile(event.Name) {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				if _, ok := pending[event.Name]; ok {
					delete(pending, event.Name)
					rearm()
				}
				name := NameFromPath(event.Name)
				if err := w.manager.Unload(name); err != nil {
					w.logger.Warnf("unloading removed plugin %s: %v", name, err)
				}
			case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
				pending[event.Name] = time.Now().Add(w.debounce)
				rearm()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Err(err).Msg("plugin watcher")
		}
	}
}

func (w *Watcher) reload(path string) {
	if err := w.manager.Reload(path); err != nil {
		w.logger.ErrorCtx("reloading plugin", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	w.logger.Infof("plugin %s reloaded", NameFromPath(path))
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func isPluginFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".lua")
}
