package session

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which dtach invocation the builder produces.
type Mode string

const (
	// ModeCreate starts the session detached (dtach -n).
	ModeCreate Mode = "create"

	// ModeCreateAndAttach starts the session and attaches the caller's
	// terminal to it (dtach -c).
	ModeCreateAndAttach Mode = "create-and-attach"

	// ModeAttach re-attaches to a running session's socket (dtach -a).
	ModeAttach Mode = "attach"
)

// ErrUnknownMode reports a mode value outside the closed set. This is a
// programming error, never silently defaulted.
var ErrUnknownMode = errors.New("unknown session mode")

// ErrNotAttachable is returned when an attach invocation is requested for a
// non-attachable session whose socket is gone. The attach-vs-view downgrade
// for such sessions is the caller's branch; the builder only refuses to
// improvise.
var ErrNotAttachable = errors.New("session does not support attach")

// BuildOptions carries the environment-level inputs of invocation
// construction.
type BuildOptions struct {
	// Dtach is the multiplexer program (default "dtach").
	Dtach string

	// Shell runs the wrapped command (default "sh").
	Shell string

	// EnvReporter, when non-empty, wraps the command with a program that
	// appends an exit sentinel line to the log.
	EnvReporter string

	// ShowOutput prefixes attach invocations with a dump of the current log.
	ShowOutput bool
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Dtach == "" {
		o.Dtach = "dtach"
	}
	if o.Shell == "" {
		o.Shell = "sh"
	}
	return o
}

// ModeFlag maps a mode onto its dtach flag.
func ModeFlag(m Mode) (string, error) {
	switch m {
	case ModeCreate:
		return "-n", nil
	case ModeCreateAndAttach:
		return "-c", nil
	case ModeAttach:
		return "-a", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
}

// BuildInvocation returns the exact dtach invocation for a session and mode
// as an argument vector. It is side-effect free and re-entrant.
func BuildInvocation(s *Session, m Mode, opts BuildOptions) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	flag, err := ModeFlag(m)
	if err != nil {
		return nil, err
	}

	if m == ModeAttach {
		if !s.Attachable && !s.SocketExists() {
			return nil, fmt.Errorf("%w: %s", ErrNotAttachable, s.ID)
		}
		if opts.ShowOutput {
			// Dump accumulated output first, then hand the terminal to dtach.
			script := fmt.Sprintf("cat %s; %s %s %s -r none",
				shellQuote(s.LogFile()), opts.Dtach, flag, shellQuote(s.SocketFile()))
			return []string{opts.Shell, "-c", script}, nil
		}
		return []string{opts.Dtach, flag, s.SocketFile(), "-r", "none"}, nil
	}

	wrapped := wrapCommand(s, opts)
	return []string{opts.Dtach, flag, s.SocketFile(), "-z", opts.Shell, "-c", wrapped}, nil
}

// BuildShellCommand renders the invocation as a single shell string, for
// callers that hand the whole thing to a shell (remote hosts).
func BuildShellCommand(s *Session, m Mode, opts BuildOptions) (string, error) {
	argv, err := BuildInvocation(s, m, opts)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = shellQuoteIfNeeded(a)
	}
	return strings.Join(parts, " "), nil
}

// wrapCommand produces the command string dtach's shell runs: a shell group
// around the (optionally env-reported) command, with combined output routed
// into the log. Attachable sessions go through tee so a live viewer can tail
// the file while the session owns the terminal.
func wrapCommand(s *Session, opts BuildOptions) string {
	inner := fmt.Sprintf("%s -c %s", opts.Shell, shellQuote(s.Command))
	if opts.EnvReporter != "" {
		inner = fmt.Sprintf("%s %s -- %s", opts.EnvReporter, s.EnvMode, inner)
	}

	if s.Attachable {
		return fmt.Sprintf("{ %s; } 2>&1 | tee %s", inner, shellQuote(s.LogFile()))
	}
	return fmt.Sprintf("{ %s; } &> %s", inner, shellQuote(s.LogFile()))
}

// shellQuote single-quotes a string for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var shellSafe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./="

func shellQuoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	for _, r := range s {
		if !strings.ContainsRune(shellSafe, r) {
			return shellQuote(s)
		}
	}
	return s
}
