package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func TestDefaultStatus(t *testing.T) {
	cases := []struct {
		name    string
		content string
		outcome Outcome
		code    int
	}{
		{"success", "output\nDetached session finished\n", OutcomeSuccess, 0},
		{"failure", "output\nDetached session exited abnormally with code 1\n", OutcomeFailure, 1},
		{"failure large code", "Detached session exited abnormally with code 137\n", OutcomeFailure, 137},
		{"no sentinel", "just some output\n", OutcomeUnknown, 0},
		{"empty", "", OutcomeUnknown, 0},
		{"sentinel not last", "Detached session finished\nmore output\n", OutcomeUnknown, 0},
		{"trailing newlines", "Detached session finished\n\n\n", OutcomeSuccess, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeLog(t, c.content)
			outcome, code := DefaultStatus(path)
			if outcome != c.outcome || code != c.code {
				t.Errorf("got (%s, %d), want (%s, %d)", outcome, code, c.outcome, c.code)
			}
		})
	}
}

func TestDefaultStatusMissingFile(t *testing.T) {
	outcome, code := DefaultStatus(filepath.Join(t.TempDir(), "missing.log"))
	if outcome != OutcomeUnknown || code != 0 {
		t.Errorf("got (%s, %d), want (unknown, 0)", outcome, code)
	}
}

func TestDefaultStatusLargeLog(t *testing.T) {
	// The sentinel must be found even when the log exceeds the tail window.
	content := strings.Repeat("line of output\n", 10000) + "Detached session finished\n"
	path := writeLog(t, content)
	outcome, code := DefaultStatus(path)
	if outcome != OutcomeSuccess || code != 0 {
		t.Errorf("got (%s, %d), want (success, 0)", outcome, code)
	}
}

func TestIsSentinelLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"Detached session finished", true},
		{"Detached session exited abnormally with code 2", true},
		{"ordinary output", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsSentinelLine(c.line); got != c.want {
			t.Errorf("IsSentinelLine(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}
