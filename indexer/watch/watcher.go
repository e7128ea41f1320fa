// Package watch wraps fsnotify to deliver create/modify events for
// supported document files under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gregoryshoniwa/voice-agent/indexer/extract"
)

type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	// OnCreate and OnModify receive absolute paths of supported,
	// non-hidden files. Both must be set before Run.
	OnCreate func(path string)
	OnModify func(path string)
}

func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:   root,
		fsw:    fsw,
		logger: slog.Default(),
	}, nil
}

// Run watches the directory tree until the context is cancelled.
// Directories created while running are added to the watch set.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("watching folder", "path", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}

	if !extract.Supported(event.Name) || extract.Hidden(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		w.logger.Info("new file detected", "path", event.Name)
		w.OnCreate(event.Name)
	case event.Op.Has(fsnotify.Write):
		w.logger.Info("file modified", "path", event.Name)
		w.OnModify(event.Name)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}
