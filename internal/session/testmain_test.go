package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

// newTestSettings builds settings rooted in a temp dir so tests never touch
// the real ~/.detached.
func newTestSettings(t *testing.T) *Settings {
	t.Helper()
	base := t.TempDir()
	s := defaultSettings(base)
	s.Shell = "sh"
	s.SessionDir = filepath.Join(base, "sessions")
	s.DBDir = base
	if err := os.MkdirAll(s.SessionDir, 0700); err != nil {
		t.Fatalf("failed to create session dir: %v", err)
	}
	return s
}

// newTestSession constructs a registry-ready session living in dir.
func newTestSession(t *testing.T, command, dir string) *Session {
	t.Helper()
	return New(command, CreateContext{
		Origin:           "test",
		WorkingDirectory: dir,
		Directory:        dir,
		Host:             Host{Name: "testhost", Kind: HostLocal},
	})
}

// touch creates an empty file.
func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

// eventually polls cond until it holds or the timeout expires.
func eventually(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
