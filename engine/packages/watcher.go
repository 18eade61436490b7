package packages

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/quiver/engine/core"
)

// simulateWatcher keeps a simulate-mode package's scanned index current
// while the editor runs. Events are debounced so one save producing several
// filesystem events triggers one rescan.
type simulateWatcher struct {
	fsnotify *fsnotify.Watcher
	onChange func()
	done     chan struct{}
}

func newSimulateWatcher(dir string, onChange func()) (*simulateWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &simulateWatcher{
		fsnotify: fsWatch,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	if err := w.watchRecursive(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

// watchRecursive adds all directories under the given one to the watch list.
func (w *simulateWatcher) watchRecursive(dir string) error {
	return filepath.Walk(dir, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		return nil
	})
}

func (w *simulateWatcher) start() {
	var pending <-chan time.Time
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := w.fsnotify.Add(e.Name); err != nil {
						core.LogWarn("simulate watcher: failed to watch '%s': %v", e.Name, err)
					}
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending = time.After(200 * time.Millisecond)
			}

		case <-pending:
			pending = nil
			w.onChange()

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("simulate watcher: %v", err)

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *simulateWatcher) close() {
	close(w.done)
}
