package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/detached-sh/detached/internal/dtach"
	"github.com/detached-sh/detached/internal/session"
)

// handleRun starts a command in a new detached session.
func handleRun(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	attach := fs.Bool("attach", false, "Attach the terminal to the new session")
	origin := fs.String("origin", "cli", "Origin tag recorded on the session")
	workdir := fs.String("dir", "", "Working directory (default: current)")
	_ = fs.Parse(args)

	command := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if command == "" {
		fatal("run: no command given")
	}
	if err := dtach.IsAvailable(cfg.DtachProgram); err != nil {
		fatal("%v", err)
	}

	wd := *workdir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			fatal("determine working directory: %v", err)
		}
	}

	m := openManager(cfg)
	defer m.Close()

	s, err := m.Create(command, wd, *origin)
	if err != nil {
		fatal("%v", err)
	}

	mode := session.ModeCreate
	if *attach {
		mode = session.ModeCreateAndAttach
	}
	argv, err := session.BuildInvocation(s, mode, m.BuildOptions())
	if err != nil {
		fatal("%v", err)
	}

	if !*attach {
		if err := dtach.Spawn(argv, wd); err != nil {
			fatal("%v", err)
		}
		if err := m.MarkLaunched(s); err != nil {
			fatal("%v", err)
		}
		fmt.Println(s.ID)
		return
	}

	// Foreground create-and-attach: dtach owns the terminal until the
	// command ends or the user detaches. Observe the socket deletion live
	// so the completion notification fires while we're still around.
	if err := m.MarkLaunched(s); err != nil {
		fatal("%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go m.Engine.Run(ctx)

	runErr := dtach.Run(argv, wd)
	m.Engine.Sweep()
	cancel()
	if runErr != nil {
		fatal("session ended abnormally: %v", runErr)
	}
}

// handleAttach re-attaches to a running session. Non-attachable or inactive
// sessions silently downgrade to the view path.
func handleAttach(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("attach", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fatal("attach: missing session reference")
	}

	m := openManager(cfg)
	defer m.Close()

	s := resolveSession(m, strings.Join(fs.Args(), " "))

	if !s.Attachable || s.State == session.StateInactive || !s.SocketExists() {
		viewSession(m, s, s.State == session.StateActive)
		return
	}

	if s.Action.Attach != nil {
		if err := s.Action.Attach(s); err != nil {
			fatal("%v", err)
		}
		return
	}

	argv, err := session.BuildInvocation(s, session.ModeAttach, m.BuildOptions())
	if err != nil {
		fatal("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Engine.Run(ctx)

	attachErr := dtach.Attach(argv, s.WorkingDirectory)
	m.Engine.Sweep()
	cancel()
	if attachErr != nil {
		fatal("%v", attachErr)
	}
}

// handleView prints or follows a session's output.
func handleView(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	follow := fs.Bool("f", false, "Keep following appended output")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fatal("view: missing session reference")
	}

	m := openManager(cfg)
	defer m.Close()

	s := resolveSession(m, strings.Join(fs.Args(), " "))
	viewSession(m, s, *follow)
}

// viewSession is the tail/view path shared by view and the attach
// downgrade. Sentinel lines are stripped before display.
func viewSession(m *session.Manager, s *session.Session, follow bool) {
	if s.Action.View != nil {
		if err := s.Action.View(s); err != nil {
			fatal("%v", err)
		}
		return
	}
	if !s.LogExists() {
		fatal("session %s has no output", s.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if follow {
		go m.Engine.Run(ctx)
		// Stop following once the session ends.
		final := s.Action.Callback
		s.Action.Callback = func(done *session.Session) {
			if final != nil {
				final(done)
			}
			cancel()
		}
	}

	err := dtach.View(ctx, s.LogFile(), os.Stdout, follow, session.IsSentinelLine)
	if err != nil && ctx.Err() == nil {
		fatal("%v", err)
	}
}

// handleStatus shows one session's state and recorded outcome.
func handleStatus(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fatal("status: missing session reference")
	}

	m := openManager(cfg)
	defer m.Close()

	s := resolveSession(m, strings.Join(fs.Args(), " "))

	fmt.Printf("id:       %s\n", s.ID)
	fmt.Printf("command:  %s\n", s.Command)
	fmt.Printf("origin:   %s\n", s.Origin)
	fmt.Printf("host:     %s (%s)\n", s.Host.Name, s.Host.Kind)
	fmt.Printf("dir:      %s\n", s.WorkingDirectory)
	fmt.Printf("state:    %s\n", s.State)
	for _, a := range s.Metadata {
		fmt.Printf("%-9s %s\n", a.Name+":", a.Value)
	}
	if s.State == session.StateInactive {
		fmt.Printf("outcome:  %s (exit %d)\n", s.Status.Outcome, s.Status.Code)
		fmt.Printf("duration: %s\n", formatDuration(s.Time.Duration))
		fmt.Printf("size:     %d bytes\n", s.Size)
	}
}

// handleKill terminates a session's process tree. The session is not marked
// inactive here: socket deletion remains the authoritative signal, observed
// by the next sweep.
func handleKill(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("kill", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fatal("kill: missing session reference")
	}

	m := openManager(cfg)
	defer m.Close()

	s := resolveSession(m, strings.Join(fs.Args(), " "))
	if err := session.Kill(s); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("killed %s\n", s.ID)
}

// handleDelete removes a session and its log file.
func handleDelete(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fatal("delete: missing session reference")
	}

	m := openManager(cfg)
	defer m.Close()

	s := resolveSession(m, strings.Join(fs.Args(), " "))
	if err := m.Delete(s); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("deleted %s\n", s.ID)
}
