package main

import (
	"testing"
	"time"

	"github.com/detached-sh/detached/internal/session"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0s"},
		{5.7, "5s"},
		{59, "59s"},
		{60, "1m0s"},
		{90, "1m30s"},
		{3599, "59m59s"},
		{3600, "1h0m"},
		{3700, "1h1m"},
		{7260, "2h1m"},
	}
	for _, c := range cases {
		if got := formatDuration(c.seconds); got != c.want {
			t.Errorf("formatDuration(%v) = %s, want %s", c.seconds, got, c.want)
		}
	}
}

func TestOutcomeCell(t *testing.T) {
	s := &session.Session{State: session.StateActive}
	if got := outcomeCell(s); got != "-" {
		t.Errorf("active session outcome = %s, want -", got)
	}

	s = &session.Session{
		State:  session.StateInactive,
		Status: session.Status{Outcome: session.OutcomeSuccess},
	}
	if got := outcomeCell(s); got != "success" {
		t.Errorf("got %s, want success", got)
	}

	s = &session.Session{
		State:  session.StateInactive,
		Status: session.Status{Outcome: session.OutcomeFailure, Code: 2},
	}
	if got := outcomeCell(s); got != "failure/2" {
		t.Errorf("got %s, want failure/2", got)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	if got := relativeTime(now.Add(-30 * time.Second)); got != "just now" {
		t.Errorf("got %s, want just now", got)
	}
	if got := relativeTime(now.Add(-5 * time.Minute)); got != "5m ago" {
		t.Errorf("got %s, want 5m ago", got)
	}
	if got := relativeTime(now.Add(-3 * time.Hour)); got != "3h ago" {
		t.Errorf("got %s, want 3h ago", got)
	}
	old := now.Add(-72 * time.Hour)
	if got := relativeTime(old); got != old.Format("Jan 02") {
		t.Errorf("got %s, want %s", got, old.Format("Jan 02"))
	}
}
