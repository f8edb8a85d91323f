package session

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Kill terminates a session's process tree: the dtach process owning the
// socket plus all descendants, children signalled before their parent.
// Best-effort throughout: a process that exited between discovery and
// signalling is skipped, and socket deletion remains the authoritative
// completion signal regardless of delivery.
func Kill(s *Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	if s.State == StateInactive {
		return fmt.Errorf("kill %s: session already inactive", s.ID)
	}

	pid, err := socketOwnerPID(s.SocketFile())
	if err != nil {
		return fmt.Errorf("kill %s: %w", s.ID, err)
	}

	killTree(pid)
	return nil
}

// socketOwnerPID locates the dtach master process for a socket by matching
// the socket path against full command lines.
func socketOwnerPID(socket string) (int, error) {
	out, err := exec.Command("pgrep", "-f", socket).Output()
	if err != nil {
		return 0, fmt.Errorf("no process owns socket %s", socket)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 || pid == os.Getpid() {
			continue
		}
		return pid, nil
	}
	return 0, fmt.Errorf("no process owns socket %s", socket)
}

// killTree signals a process tree depth-first: each child's subtree first,
// then the process itself.
func killTree(pid int) {
	for _, child := range childPIDs(pid) {
		killTree(child)
	}
	signalPID(pid)
}

// childPIDs returns the direct children of a process via pgrep -P.
func childPIDs(pid int) []int {
	out, err := exec.Command("pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if p, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && p > 0 {
			pids = append(pids, p)
		}
	}
	return pids
}

// signalPID delivers SIGTERM if the process still exists. Already-dead
// processes are ignored.
func signalPID(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	// Signal 0 probes existence without side effects.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		sessionLog.Debug("kill_signal_failed",
			slog.Int("pid", pid),
			slog.String("error", err.Error()),
		)
	}
}
