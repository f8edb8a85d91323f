package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/detached-sh/detached/internal/logging"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// File extensions for the two per-session host files. The socket is created
// and removed by dtach; its presence is the sole liveness signal.
const (
	SocketExt = ".socket"
	LogExt    = ".log"
)

// State is the lifecycle state of a session.
type State string

const (
	// StateUnknown means the session was just created and liveness has not
	// been confirmed yet.
	StateUnknown State = "unknown"

	// StateActive means the socket was confirmed present.
	StateActive State = "active"

	// StateInactive is terminal: socket confirmed absent, outcome recorded.
	StateInactive State = "inactive"
)

// Outcome classifies how a finished session ended.
type Outcome string

const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// EnvMode controls whether session output is treated as raw text or as a
// terminal stream requiring escape-sequence interpretation.
type EnvMode string

const (
	EnvPlainText    EnvMode = "plain-text"
	EnvTerminalData EnvMode = "terminal-data"
)

// HostKind distinguishes local sessions from sessions on network-filesystem
// backed remote hosts.
type HostKind string

const (
	HostLocal  HostKind = "local"
	HostRemote HostKind = "remote"
)

// Host identifies where a session runs.
type Host struct {
	Name string   `json:"name"`
	Kind HostKind `json:"kind"`
}

// Status is the recorded outcome of an inactive session. It is meaningful
// only once State is StateInactive.
type Status struct {
	Outcome Outcome `json:"outcome"`
	Code    int     `json:"code"`
}

// Timing tracks wall-clock bounds of a session. End and Duration are set
// only at the transition to inactive.
type Timing struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration float64   `json:"duration"`
}

// Annotation is one metadata entry produced by an annotator at creation.
// Order is preserved.
type Annotation struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Action holds optional per-origin callbacks customizing attach, view,
// re-run and exit-status behavior. Resolved once at creation (and again at
// registry load); never looked up dynamically per call.
type Action struct {
	Attach   func(s *Session) error
	View     func(s *Session) error
	Run      func(command string) error
	Status   func(s *Session) (Outcome, int)
	Callback func(s *Session)
}

// Session represents one detachable command invocation and its runtime
// state. All fields except State, Status, Size and Time are immutable after
// creation.
type Session struct {
	ID               string       `json:"id"`
	Command          string       `json:"command"`
	Origin           string       `json:"origin"`
	WorkingDirectory string       `json:"working_directory"`
	Directory        string       `json:"directory"`
	Attachable       bool         `json:"attachable"`
	EnvMode          EnvMode      `json:"env_mode"`
	Host             Host         `json:"host"`
	Metadata         []Annotation `json:"metadata,omitempty"`
	Time             Timing       `json:"time"`
	Status           Status       `json:"status"`
	Size             int64        `json:"size"`
	State            State        `json:"state"`

	// Action is re-resolved from Origin after deserialization.
	Action Action `json:"-"`
}

// CreateContext carries the caller-bound context a new session captures:
// origin, directories, host and the policy lists from configuration.
type CreateContext struct {
	Origin           string
	WorkingDirectory string
	Directory        string
	Host             Host
	Action           Action

	// NonAttachableCommands are regexp patterns; a matching command yields
	// a non-attachable session that always falls back to tailing output.
	NonAttachableCommands []string

	// PlainTextCommands are regexp patterns selecting plain-text env mode.
	PlainTextCommands []string

	// Annotators run once, in order, to produce the metadata mapping.
	Annotators []Annotator
}

// New constructs a fully populated, registry-ready session with state
// unknown. No side effects beyond value construction: directory creation and
// registry insertion are the caller's responsibility, performed immediately
// after construction as a unit.
func New(command string, ctx CreateContext) *Session {
	now := time.Now()
	s := &Session{
		ID:               deriveID(command, now),
		Command:          command,
		Origin:           ctx.Origin,
		WorkingDirectory: ctx.WorkingDirectory,
		Directory:        ctx.Directory,
		Attachable:       !matchAny(ctx.NonAttachableCommands, command),
		EnvMode:          EnvTerminalData,
		Host:             ctx.Host,
		Metadata:         annotate(ctx.Annotators, ctx.WorkingDirectory),
		Time:             Timing{Start: now},
		Status:           Status{Outcome: OutcomeUnknown},
		State:            StateUnknown,
		Action:           ctx.Action,
	}
	if matchAny(ctx.PlainTextCommands, command) {
		s.EnvMode = EnvPlainText
	}
	return s
}

// deriveID hashes the command text plus creation timestamp. Uniqueness, not
// secrecy, is the requirement.
func deriveID(command string, t time.Time) string {
	sum := sha256.Sum256([]byte(command + strconv.FormatInt(t.UnixNano(), 10)))
	return hex.EncodeToString(sum[:8])
}

// SocketFile returns the path whose existence signals session liveness.
func (s *Session) SocketFile() string {
	return filepath.Join(s.Directory, s.ID+SocketExt)
}

// LogFile returns the path of the combined stdout/stderr log.
func (s *Session) LogFile() string {
	return filepath.Join(s.Directory, s.ID+LogExt)
}

// SocketExists reports whether the session's socket file is present.
func (s *Session) SocketExists() bool {
	_, err := os.Stat(s.SocketFile())
	return err == nil
}

// LogExists reports whether the session's log file is present.
func (s *Session) LogExists() bool {
	_, err := os.Stat(s.LogFile())
	return err == nil
}

// LogSize returns the current byte size of the log file, 0 if missing.
func (s *Session) LogSize() int64 {
	info, err := os.Stat(s.LogFile())
	if err != nil {
		return 0
	}
	return info.Size()
}

// Validate reports whether the session is well formed enough to operate on.
// Public operations guard with this instead of propagating low-level faults.
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	if s.ID == "" {
		return fmt.Errorf("session has no id")
	}
	if s.Directory == "" {
		return fmt.Errorf("session %s has no directory", s.ID)
	}
	return nil
}

// IDFromSocket derives the session id from a socket file path. Returns ""
// when the path does not carry the socket extension.
func IDFromSocket(path string) string {
	base := filepath.Base(path)
	if filepath.Ext(base) != SocketExt {
		return ""
	}
	return base[:len(base)-len(SocketExt)]
}

// DetectHost captures the (hostname, local|remote) pair for a working
// directory. Remote-prefixed paths (e.g. "/ssh:user@host:/path") mark the
// session remote; registry and socket visibility then rely on a shared
// network filesystem.
func DetectHost(workdir string) Host {
	name, err := os.Hostname()
	if err != nil {
		name = "localhost"
	}
	h := Host{Name: name, Kind: HostLocal}
	if remotePathRe.MatchString(workdir) {
		h.Kind = HostRemote
		if m := remotePathRe.FindStringSubmatch(workdir); len(m) > 2 && m[2] != "" {
			h.Name = m[2]
		}
	}
	return h
}

var remotePathRe = regexp.MustCompile(`^/(ssh|scp|sshx):(?:[^@:]+@)?([^:]+):`)

func matchAny(patterns []string, command string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			sessionLog.Warn("invalid_command_pattern", slog.String("pattern", p), slog.String("error", err.Error()))
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}
