package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch indexes files matching a pattern as they appear in a directory.
type Watch struct {
	indexer  *Indexer
	watcher  *fsnotify.Watcher
	dir      string
	pattern  string
	debounce time.Duration
	logger   *slog.Logger
}

// StartWatch begins watching dir. Events are buffered until Run is called.
func (i *Indexer) StartWatch(dir, pattern string) (*Watch, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watch{
		indexer:  i,
		watcher:  w,
		dir:      dir,
		pattern:  pattern,
		debounce: i.debounce,
		logger:   i.logger.With("dir", dir),
	}, nil
}

// Watch indexes new and rewritten files in dir until ctx is done.
func (i *Indexer) Watch(ctx context.Context, dir, pattern string) error {
	w, err := i.StartWatch(dir, pattern)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

// Run processes events until ctx is done. Each file is indexed once its
// events have been quiet for the debounce period.
func (w *Watch) Run(ctx context.Context) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	w.logger.Info("watching for documents", "pattern", w.pattern)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !w.matches(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.flush(ctx, pending)
		}
	}
}

func (w *Watch) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	clear(pending)
	slices.Sort(paths)

	for _, path := range paths {
		ok, err := w.indexer.indexPath(ctx, path)
		switch {
		case err != nil:
			w.logger.Error("failed to index file", "path", path, "error", err)
		case ok:
			w.logger.Info("indexed file", "path", path)
		default:
			w.logger.Debug("skipped empty file", "path", path)
		}
	}
}

func (w *Watch) matches(path string) bool {
	if strings.HasSuffix(path, metadataSuffix) {
		return false
	}
	ok, _ := filepath.Match(w.pattern, filepath.Base(path))
	return ok
}

// Close stops watching.
func (w *Watch) Close() error {
	return w.watcher.Close()
}
