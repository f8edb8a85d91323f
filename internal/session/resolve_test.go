package session

import (
	"strings"
	"testing"
)

func resolveFixture(t *testing.T) []*Session {
	t.Helper()
	dir := t.TempDir()
	mk := func(id, command string) *Session {
		s := newTestSession(t, command, dir)
		s.ID = id
		return s
	}
	return []*Session{
		mk("aabb1122", "make test"),
		mk("aacc3344", "sleep 600"),
		mk("ffee5566", "python train.py"),
	}
}

func TestResolveExactID(t *testing.T) {
	sessions := resolveFixture(t)
	s, err := Resolve(sessions, "aabb1122")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if s.Command != "make test" {
		t.Errorf("resolved wrong session: %s", s.Command)
	}
}

func TestResolveIDPrefix(t *testing.T) {
	sessions := resolveFixture(t)
	s, err := Resolve(sessions, "ff")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if s.ID != "ffee5566" {
		t.Errorf("resolved wrong session: %s", s.ID)
	}
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	sessions := resolveFixture(t)
	_, err := Resolve(sessions, "aa")
	if err == nil {
		t.Fatal("expected ambiguity error")
	}
	if !strings.Contains(err.Error(), "aabb1122") || !strings.Contains(err.Error(), "aacc3344") {
		t.Errorf("expected both candidates named, got %v", err)
	}
}

func TestResolveFuzzyLabel(t *testing.T) {
	sessions := resolveFixture(t)
	s, err := Resolve(sessions, "train")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if s.ID != "ffee5566" {
		t.Errorf("resolved wrong session: %s", s.ID)
	}
}

func TestResolveNoMatch(t *testing.T) {
	sessions := resolveFixture(t)
	if _, err := Resolve(sessions, "zzzzz"); err == nil {
		t.Error("expected error for unmatched query")
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	if _, err := Resolve(nil, ""); err == nil {
		t.Error("expected error for empty reference")
	}
}
