package identity

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reloads a Directory whenever its YAML file changes. A file that
// fails to parse leaves the previous table in place.
type Watcher struct {
	dir      *Directory
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	reloaded chan struct{}
}

// Watch starts watching path. The directory containing the file is watched
// so editors that replace the file atomically are picked up.
func Watch(dir *Directory, path string, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &Watcher{
		dir:      dir,
		path:     filepath.Clean(path),
		watcher:  fsWatcher,
		logger:   logger,
		stopCh:   make(chan struct{}),
		reloaded: make(chan struct{}, 1),
	}
	go w.loop()

	logger.Info("Author directory hot reload enabled", zap.String("path", path))
	return w, nil
}

// Reloaded signals after each successful reload.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

func (w *Watcher) loop() {
	defer w.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Author directory watcher error", zap.Error(err))

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	users, err := readUsers(w.path)
	if err == nil {
		err = w.dir.Replace(users)
	}
	if err != nil {
		w.logger.Error("Failed to reload author directory",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("Author directory reloaded",
		zap.String("path", w.path),
		zap.Int("users", len(users)),
	)
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
