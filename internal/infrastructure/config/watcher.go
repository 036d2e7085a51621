package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doeshing/sentry-go/internal/ports"
)

const reloadDebounce = 150 * time.Millisecond

// Watcher calls onChange after a config layer file is written, created,
// renamed into place or removed. Bursts of events are coalesced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	onChange func()
	logger   ports.Logger
	debounce time.Duration
}

// NewWatcher watches the directories holding the layer files. Directories
// that do not exist yet are skipped.
func NewWatcher(paths Paths, onChange func(), logger ports.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	files := map[string]bool{}
	dirs := map[string]bool{}
	for _, path := range []string{paths.Legacy, paths.Global, paths.Project} {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		files[clean] = true
		dir := filepath.Dir(clean)
		if dirs[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
		dirs[dir] = true
	}
	return &Watcher{watcher: w, files: files, onChange: onChange, logger: logger, debounce: reloadDebounce}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Info("config changed, reloading", nil)
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}
