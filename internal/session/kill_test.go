package session

import (
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requirePgrep(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pgrep"); err != nil {
		t.Skip("pgrep not available")
	}
}

func TestKillInactiveSession(t *testing.T) {
	s := newTestSession(t, "echo hi", t.TempDir())
	s.State = StateInactive
	if err := Kill(s); err == nil {
		t.Error("expected error killing an inactive session")
	}
}

func TestKillNoSocketOwner(t *testing.T) {
	requirePgrep(t)
	s := newTestSession(t, "echo hi", t.TempDir())
	s.State = StateActive
	err := Kill(s)
	if err == nil {
		t.Fatal("expected error when no process owns the socket")
	}
	if !strings.Contains(err.Error(), "no process owns") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestKillTreeTerminatesChildren(t *testing.T) {
	requirePgrep(t)

	cmd := exec.Command("sh", "-c", "sleep 60 & sleep 60 & wait")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start process tree: %v", err)
	}
	defer cmd.Process.Kill()
	defer cmd.Wait()

	eventually(t, 3*time.Second, "children to appear", func() bool {
		return len(childPIDs(cmd.Process.Pid)) >= 2
	})

	killTree(cmd.Process.Pid)

	eventually(t, 3*time.Second, "process tree to die", func() bool {
		return len(childPIDs(cmd.Process.Pid)) == 0
	})
}

func TestKillTreeDeadPID(t *testing.T) {
	// Must not panic or signal anything when the process is long gone.
	killTree(1 << 22)
	signalPID(1 << 22)
}
