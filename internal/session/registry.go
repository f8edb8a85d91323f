package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/detached-sh/detached/internal/logging"
)

var registryLog = logging.ForComponent(logging.CompRegistry)

// DBVersion is the registry file format version. A mismatching header is
// treated as "no usable data", not an error: the registry cold-starts empty
// and the old file is overwritten on the first mutation.
const DBVersion = "0.6.1"

const (
	// DBFileName is the registry file inside the configured db directory.
	DBFileName = "sessions.db"

	dbHeaderPrefix = "# Detached Session Database Version: "
)

// ErrNotFound is returned when a session id does not resolve.
var ErrNotFound = errors.New("session not found")

// Registry is the durable store of all known sessions: an in-memory map
// mirrored to one flat file on every mutating operation. External mutation
// of the file (another running instance, possibly on another host via a
// network filesystem) is detected with a watch on the containing directory
// and handled by reloading the whole map, last-writer-wins.
type Registry struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session

	// lastSum fingerprints our own most recent write so the directory watch
	// can tell external mutations from echoes of our own saves.
	lastSum [sha256.Size]byte

	fswatch   *fsnotify.Watcher
	reload    singleflight.Group
	onReload  func()
	done      chan struct{}
	closeOnce sync.Once
}

// OpenRegistry loads (or cold-starts) the registry backed by
// <dir>/sessions.db and begins watching the directory for external changes.
func OpenRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	r := &Registry{
		path:     filepath.Join(dir, DBFileName),
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	r.loadLocked()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch db directory: %w", err)
	}
	r.fswatch = fw
	go r.watchLoop()

	return r, nil
}

// Close stops the database watch. Pending state is already on disk since
// every mutation persists before returning.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.fswatch != nil {
			err = r.fswatch.Close()
		}
	})
	return err
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// SetReloadHandler registers a callback invoked after an external change
// replaced the in-memory map. Typically wired to a reconciliation sweep.
func (r *Registry) SetReloadHandler(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = fn
}

// Insert adds a new session and persists synchronously.
func (r *Registry) Insert(s *Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("insert: duplicate session id %s", s.ID)
	}
	r.sessions[s.ID] = s
	return r.persistLocked()
}

// Update replaces a session's record. Hot-path transition updates may batch
// by passing persist=false, but the triggering caller must end with a
// persisting call before returning.
func (r *Registry) Update(s *Session, persist bool) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return fmt.Errorf("update %s: %w", s.ID, ErrNotFound)
	}
	r.sessions[s.ID] = s
	if !persist {
		return nil
	}
	return r.persistLocked()
}

// Remove deletes a session, its log file if present, and persists
// synchronously.
func (r *Registry) Remove(s *Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; !exists {
		return fmt.Errorf("remove %s: %w", s.ID, ErrNotFound)
	}
	delete(r.sessions, s.ID)

	if err := os.Remove(s.LogFile()); err != nil && !os.IsNotExist(err) {
		registryLog.Warn("log_removal_failed",
			slog.String("session", s.ID),
			slog.String("error", err.Error()),
		)
	}
	return r.persistLocked()
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns all sessions ordered by creation time, newest first.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Start.Equal(out[j].Time.Start) {
			return out[i].Time.Start.After(out[j].Time.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Flush persists the current in-memory map. Used to end a batch of
// non-persisting updates.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked()
}

// persistLocked rewrites the registry file atomically: version header line,
// then the serialized id→session map.
func (r *Registry) persistLocked() error {
	var buf bytes.Buffer
	buf.WriteString(dbHeaderPrefix + DBVersion + "\n")

	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.sessions); err != nil {
		return fmt.Errorf("serialize registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}

	r.lastSum = sha256.Sum256(buf.Bytes())
	return nil
}

// loadLocked parses the registry file into the in-memory map. Any problem
// (missing file, version mismatch, parse failure) yields an empty map; prior
// data is orphaned rather than migrated.
func (r *Registry) loadLocked() {
	r.sessions = make(map[string]*Session)

	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}
	r.lastSum = sha256.Sum256(data)

	// A header line with nothing after it (truncated or externally written
	// file) is no usable data, same as a version mismatch.
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		registryLog.Warn("db_truncated", slog.String("path", r.path))
		return
	}
	header := strings.TrimRight(string(data[:nl]), "\r")
	if !strings.HasPrefix(header, dbHeaderPrefix) {
		registryLog.Warn("db_header_unrecognized", slog.String("path", r.path))
		return
	}
	if v := strings.TrimSpace(strings.TrimPrefix(header, dbHeaderPrefix)); v != DBVersion {
		registryLog.Info("db_version_mismatch",
			slog.String("found", v),
			slog.String("want", DBVersion),
		)
		return
	}

	body := data[nl+1:]
	var sessions map[string]*Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		registryLog.Warn("db_parse_failed", slog.String("error", err.Error()))
		return
	}

	for id, s := range sessions {
		if s == nil || s.ID != id {
			continue
		}
		s.Action = ActionFor(s.Origin)
		r.sessions[id] = s
	}
	registryLog.Debug("db_loaded", slog.Int("sessions", len(r.sessions)))
}

// watchLoop reacts to filesystem notifications on the db directory. Writes
// and attribute changes on the registry file from another process trigger a
// full reload replacing local state.
func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.fswatch.Events:
			if !ok {
				return
			}
			if event.Name != r.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}
			// Collapse event bursts into one reload. Dispatched off the
			// event loop so queued notifications arriving while a reload
			// runs join it instead of each triggering their own. A shared
			// result means our event may postdate the joined read, so go
			// around again; the fingerprint check makes redundant runs
			// no-ops.
			go func() {
				for {
					_, _, shared := r.reload.Do("reload", func() (any, error) {
						r.reloadExternal()
						return nil, nil
					})
					if !shared {
						return
					}
				}
			}()
		case err, ok := <-r.fswatch.Errors:
			if !ok {
				return
			}
			registryLog.Warn("db_watch_error", slog.String("error", err.Error()))
		}
	}
}

// reloadExternal replaces the in-memory map with the file contents unless
// the change was our own last write.
func (r *Registry) reloadExternal() {
	r.mu.Lock()
	data, err := os.ReadFile(r.path)
	if err == nil && sha256.Sum256(data) == r.lastSum {
		r.mu.Unlock()
		return
	}
	r.loadLocked()
	onReload := r.onReload
	n := len(r.sessions)
	r.mu.Unlock()

	registryLog.Info("db_reloaded_external", slog.Int("sessions", n))
	if onReload != nil {
		onReload()
	}
}
