package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/detached-sh/detached/internal/session"
)

const (
	colID      = 16
	colState   = 9
	colOutcome = 8
	colCommand = 48
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// handleList prints all known sessions, newest first.
func handleList(cfg *session.Settings, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(args)

	m := openManager(cfg)
	defer m.Close()

	sessions := m.Registry.List()

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sessions); err != nil {
			fatal("%v", err)
		}
		return
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}

	labels := make([]string, len(sessions))
	for i, s := range sessions {
		labels[i] = session.Label(s, colCommand)
	}
	labels = session.DeduplicateLabels(labels)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-*s %-*s %-*s %-10s %s",
		colID, "ID", colState, "STATE", colOutcome, "OUTCOME", "CREATED", "COMMAND")))

	for i, s := range sessions {
		line := fmt.Sprintf("%-*s %-*s %-*s %-10s %s",
			colID, s.ID,
			colState, s.State,
			colOutcome, outcomeCell(s),
			relativeTime(s.Time.Start),
			labels[i],
		)
		fmt.Println(stateStyle(s).Render(line))
	}
}

func outcomeCell(s *session.Session) string {
	if s.State != session.StateInactive {
		return "-"
	}
	if s.Status.Outcome == session.OutcomeFailure {
		return fmt.Sprintf("%s/%d", s.Status.Outcome, s.Status.Code)
	}
	return string(s.Status.Outcome)
}

func stateStyle(s *session.Session) lipgloss.Style {
	switch {
	case s.State == session.StateActive:
		return activeStyle
	case s.State == session.StateInactive && s.Status.Outcome == session.OutcomeFailure:
		return failureStyle
	default:
		return inactiveStyle
	}
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 02")
	}
}
