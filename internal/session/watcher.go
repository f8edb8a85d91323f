package session

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/detached-sh/detached/internal/logging"
)

var watcherLog = logging.ForComponent(logging.CompWatcher)

// SocketDeletion reports that a session socket disappeared from a watched
// directory.
type SocketDeletion struct {
	Dir string
	ID  string
}

// Watcher maintains one filesystem watch per distinct session directory with
// at least one active session, dedicated to detecting the disappearance of
// session sockets. Deletions are delivered on a channel consumed by the
// engine's Run loop.
type Watcher struct {
	mu   sync.Mutex
	fs   *fsnotify.Watcher
	dirs map[string]bool

	deletions chan SocketDeletion
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates the watcher and starts its event loop.
func NewWatcher() (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fs:        fs,
		dirs:      make(map[string]bool),
		deletions: make(chan SocketDeletion, 64),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and closes the deletions channel.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

// Deletions returns the channel delivering socket deletion events.
func (w *Watcher) Deletions() <-chan SocketDeletion {
	return w.deletions
}

// EnsureWatched starts watching a session directory. Idempotent: a directory
// already under watch is not added twice.
func (w *Watcher) EnsureWatched(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.dirs[dir] = true
	watcherLog.Debug("dir_watch_added", slog.String("dir", dir))
	return nil
}

// Forget removes the watch on a directory. No-op when not watched.
func (w *Watcher) Forget(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		return
	}
	delete(w.dirs, dir)
	if err := w.fs.Remove(dir); err != nil {
		watcherLog.Debug("dir_watch_remove_failed",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
	watcherLog.Debug("dir_watch_removed", slog.String("dir", dir))
}

// WatchedDirs returns the currently watched directories, sorted.
func (w *Watcher) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// loop forwards socket deletions. Only Remove and Rename on socket-suffixed
// paths matter; everything else in a session directory (log writes, tee
// output) is noise.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			close(w.deletions)
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				close(w.deletions)
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id := IDFromSocket(event.Name)
			if id == "" {
				continue
			}
			d := SocketDeletion{Dir: filepath.Dir(event.Name), ID: id}
			select {
			case w.deletions <- d:
				watcherLog.Debug("socket_deleted",
					slog.String("id", d.ID),
					slog.String("dir", d.Dir),
				)
			default:
				watcherLog.Warn("deletion_channel_full", slog.String("id", d.ID))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				close(w.deletions)
				return
			}
			watcherLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
