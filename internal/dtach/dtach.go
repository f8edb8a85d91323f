// Package dtach drives the external dtach multiplexer: spawning detached
// sessions, attaching the local terminal to a session socket, and following
// session logs.
package dtach

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/detached-sh/detached/internal/logging"
)

var dtachLog = logging.ForComponent(logging.CompDtach)

// IsAvailable checks that the dtach binary can be found.
// Returns nil if available, otherwise an error with details.
func IsAvailable(program string) error {
	if program == "" {
		program = "dtach"
	}
	if _, err := exec.LookPath(program); err != nil {
		return fmt.Errorf("dtach not found: %w (install dtach or set dtach_program in config.toml)", err)
	}
	return nil
}

// Spawn launches an invocation fully detached: no inherited stdio, released
// from this process's tree. dtach -n daemonizes itself, so the child exits
// quickly while the grandchild owns the session.
func Spawn(argv []string, workdir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("spawn: empty invocation")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	dtachLog.Debug("spawned", slog.String("program", argv[0]), slog.Int("pid", cmd.Process.Pid))

	// Reap the short-lived foreground child so it doesn't zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Run executes an invocation in the foreground with the caller's terminal,
// blocking until it exits. Used for create-and-attach, where dtach owns the
// terminal for the session's whole lifetime.
func Run(argv []string, workdir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("run: empty invocation")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
