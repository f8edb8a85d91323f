package session

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestModeFlag(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{ModeCreate, "-n"},
		{ModeCreateAndAttach, "-c"},
		{ModeAttach, "-a"},
	}
	for _, c := range cases {
		got, err := ModeFlag(c.mode)
		if err != nil {
			t.Errorf("ModeFlag(%s) error: %v", c.mode, err)
		}
		if got != c.want {
			t.Errorf("ModeFlag(%s) = %s, want %s", c.mode, got, c.want)
		}
	}

	if _, err := ModeFlag(Mode("bogus")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestBuildInvocationCreate(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "sleep 1 && echo done", dir)

	argv, err := BuildInvocation(s, ModeCreate, BuildOptions{Dtach: "dtach", Shell: "bash"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := []string{
		"dtach", "-n", s.SocketFile(), "-z", "bash", "-c",
		fmt.Sprintf("{ bash -c 'sleep 1 && echo done'; } 2>&1 | tee '%s'", s.LogFile()),
	}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv = %q\nwant   %q", argv, want)
	}
}

func TestBuildInvocationCreateAndAttach(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "echo hi", dir)

	argv, err := BuildInvocation(s, ModeCreateAndAttach, BuildOptions{Shell: "sh"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if argv[0] != "dtach" || argv[1] != "-c" {
		t.Errorf("expected default dtach with -c, got %q", argv[:2])
	}
	if argv[2] != s.SocketFile() {
		t.Errorf("expected socket path %s, got %s", s.SocketFile(), argv[2])
	}
}

func TestBuildInvocationNonAttachableRedirect(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "watch date", dir)
	s.Attachable = false

	argv, err := BuildInvocation(s, ModeCreate, BuildOptions{Shell: "sh"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	wrapped := argv[len(argv)-1]
	if strings.Contains(wrapped, "tee") {
		t.Errorf("non-attachable session must not pipe through tee: %s", wrapped)
	}
	if !strings.Contains(wrapped, "&> ") {
		t.Errorf("expected plain redirect for non-attachable session: %s", wrapped)
	}
}

func TestBuildInvocationEnvReporter(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "make test", dir)

	argv, err := BuildInvocation(s, ModeCreate, BuildOptions{
		Shell:       "sh",
		EnvReporter: "detached-env",
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	wrapped := argv[len(argv)-1]
	want := "detached-env terminal-data -- sh -c 'make test'"
	if !strings.Contains(wrapped, want) {
		t.Errorf("expected wrapped command to contain %q, got %q", want, wrapped)
	}

	s.EnvMode = EnvPlainText
	argv, err = BuildInvocation(s, ModeCreate, BuildOptions{
		Shell:       "sh",
		EnvReporter: "detached-env",
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !strings.Contains(argv[len(argv)-1], "detached-env plain-text -- sh -c") {
		t.Errorf("expected plain-text mode in wrapped command: %q", argv[len(argv)-1])
	}
}

func TestBuildInvocationAttach(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "echo hi", dir)

	argv, err := BuildInvocation(s, ModeAttach, BuildOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := []string{"dtach", "-a", s.SocketFile(), "-r", "none"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv = %q, want %q", argv, want)
	}
}

func TestBuildInvocationAttachShowOutput(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "echo hi", dir)

	argv, err := BuildInvocation(s, ModeAttach, BuildOptions{Shell: "sh", ShowOutput: true})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if argv[0] != "sh" || argv[1] != "-c" {
		t.Fatalf("expected shell wrapper, got %q", argv)
	}
	script := argv[2]
	catIdx := strings.Index(script, "cat ")
	dtachIdx := strings.Index(script, "dtach -a")
	if catIdx < 0 || dtachIdx < 0 || catIdx > dtachIdx {
		t.Errorf("expected log dump before attach: %s", script)
	}
}

func TestBuildInvocationAttachNonAttachable(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "watch date", dir)
	s.Attachable = false

	// No socket present: attach must be refused outright.
	if _, err := BuildInvocation(s, ModeAttach, BuildOptions{}); !errors.Is(err, ErrNotAttachable) {
		t.Errorf("expected ErrNotAttachable, got %v", err)
	}

	// With a live socket the invocation is still buildable; the caller
	// decides whether to downgrade to a view.
	touch(t, s.SocketFile())
	if _, err := BuildInvocation(s, ModeAttach, BuildOptions{}); err != nil {
		t.Errorf("expected attach to build with live socket, got %v", err)
	}
}

func TestBuildInvocationQuotesSingleQuotes(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "echo 'it''s fine'", dir)

	argv, err := BuildInvocation(s, ModeCreate, BuildOptions{Shell: "sh"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	wrapped := argv[len(argv)-1]
	if strings.Contains(wrapped, "-c 'echo 'it''s") {
		t.Errorf("single quotes not escaped: %s", wrapped)
	}
	if !strings.Contains(wrapped, `'\''`) {
		t.Errorf("expected POSIX quote escaping in %s", wrapped)
	}
}

func TestBuildShellCommand(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, "echo hi", dir)

	cmd, err := BuildShellCommand(s, ModeAttach, BuildOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !strings.HasPrefix(cmd, "dtach -a ") || !strings.HasSuffix(cmd, " -r none") {
		t.Errorf("unexpected shell command: %s", cmd)
	}
}
