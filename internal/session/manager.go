package session

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Manager ties the registry, watcher and engine together and owns the
// create-session workflow. One shared instance per running process is the
// expected usage.
type Manager struct {
	Settings *Settings
	Registry *Registry
	Watcher  *Watcher
	Engine   *Engine
}

// NewManager opens the registry, starts the directory watcher and runs the
// startup reconciliation sweep.
func NewManager(cfg *Settings, notify Notifier) (*Manager, error) {
	reg, err := OpenRegistry(cfg.DBDir)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	watcher, err := NewWatcher()
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("start watcher: %w", err)
	}

	engine := NewEngine(reg, watcher, notify, EngineOptions{
		SweepInterval: time.Duration(cfg.Registry.SweepIntervalSecs) * time.Second,
		IOTimeout:     time.Duration(cfg.Registry.IOTimeoutSecs) * time.Second,
	})
	engine.Sweep()

	return &Manager{
		Settings: cfg,
		Registry: reg,
		Watcher:  watcher,
		Engine:   engine,
	}, nil
}

// Close releases the watcher and registry.
func (m *Manager) Close() {
	if m.Watcher != nil {
		m.Watcher.Close()
	}
	if m.Registry != nil {
		m.Registry.Close()
	}
}

// Create constructs a session for a command, creates its directory, inserts
// it into the registry and starts watching its directory, as one unit.
func (m *Manager) Create(command, workdir, origin string) (*Session, error) {
	if command == "" {
		return nil, fmt.Errorf("create session: empty command")
	}

	s := New(command, CreateContext{
		Origin:                origin,
		WorkingDirectory:      workdir,
		Directory:             m.Settings.SessionDir,
		Host:                  DetectHost(workdir),
		Action:                ActionFor(origin),
		NonAttachableCommands: m.Settings.NonAttachableCommands,
		PlainTextCommands:     m.Settings.PlainTextCommands,
		Annotators:            AnnotatorsByName(m.Settings.Annotators),
	})

	if err := os.MkdirAll(s.Directory, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	if err := m.Registry.Insert(s); err != nil {
		return nil, err
	}
	if err := m.Watcher.EnsureWatched(s.Directory); err != nil {
		sessionLog.Warn("session_watch_failed",
			slog.String("dir", s.Directory),
			slog.String("error", err.Error()),
		)
	}

	sessionLog.Info("session_created",
		slog.String("id", s.ID),
		slog.String("origin", origin),
		slog.Bool("attachable", s.Attachable),
	)
	return s, nil
}

// BuildOptions derives invocation options from the settings.
func (m *Manager) BuildOptions() BuildOptions {
	return BuildOptions{
		Dtach:       m.Settings.DtachProgram,
		Shell:       m.Settings.Shell,
		EnvReporter: m.Settings.EnvReporter,
		ShowOutput:  m.Settings.ShowOutputOnAttach,
	}
}

// MarkLaunched promotes a freshly spawned session to active. Called by the
// external-process layer right after the multiplexer was launched.
func (m *Manager) MarkLaunched(s *Session) error {
	if s.State != StateUnknown {
		return nil
	}
	s.State = StateActive
	return m.Registry.Update(s, true)
}

// Delete removes a session record and its log. Running sessions are killed
// first so their socket doesn't linger.
func (m *Manager) Delete(s *Session) error {
	if s.State == StateActive && s.SocketExists() {
		if err := Kill(s); err != nil {
			sessionLog.Warn("delete_kill_failed",
				slog.String("id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return m.Registry.Remove(s)
}
