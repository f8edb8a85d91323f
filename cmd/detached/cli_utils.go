package main

import (
	"fmt"
	"os"

	"github.com/detached-sh/detached/internal/notify"
	"github.com/detached-sh/detached/internal/session"
)

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openManager opens the registry and runs the startup reconciliation sweep.
// Every command that touches session state goes through here.
func openManager(cfg *session.Settings) *session.Manager {
	m, err := session.NewManager(cfg, notify.Completion(cfg.Notifications.Enabled))
	if err != nil {
		fatal("%v", err)
	}
	return m
}

// resolveSession maps a user-supplied id or query to one session, exiting
// with the candidates on ambiguity.
func resolveSession(m *session.Manager, query string) *session.Session {
	s, err := session.Resolve(m.Registry.List(), query)
	if err != nil {
		fatal("%v", err)
	}
	return s
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	if total < 3600 {
		return fmt.Sprintf("%dm%ds", total/60, total%60)
	}
	return fmt.Sprintf("%dh%dm", total/3600, (total%3600)/60)
}
