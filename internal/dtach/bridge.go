package dtach

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Bridge runs an attach invocation under a pty, mirroring the local
// terminal: raw mode on stdin, bidirectional copy, and SIGWINCH resize
// forwarding. Non-terminal stdin (pipes, tests) falls back to a plain
// foreground run.
type Bridge struct {
	cmd  *exec.Cmd
	ptmx *os.File

	closeOnce sync.Once
}

// Attach blocks until the attached invocation exits or the local terminal
// closes.
func Attach(argv []string, workdir string) error {
	if len(argv) == 0 {
		return fmt.Errorf("attach: empty invocation")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return Run(argv, workdir)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workdir
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start attach pty: %w", err)
	}
	b := &Bridge{cmd: cmd, ptmx: ptmx}
	defer b.close()

	// Track the local terminal size for the session's whole attachment.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if err := pty.InheritSize(os.Stdin, b.ptmx); err != nil {
				dtachLog.Debug("resize_failed", slog.String("error", err.Error()))
			}
		}
	}()
	winch <- syscall.SIGWINCH

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("set raw terminal: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	go func() {
		_, _ = io.Copy(b.ptmx, os.Stdin)
	}()
	_, err = io.Copy(os.Stdout, b.ptmx)

	waitErr := cmd.Wait()
	if err != nil && !errors.Is(err, io.EOF) && !isPTYClosed(err) {
		return err
	}
	return waitErr
}

func (b *Bridge) close() {
	b.closeOnce.Do(func() {
		if b.ptmx != nil {
			_ = b.ptmx.Close()
		}
	})
}

// isPTYClosed recognizes the EIO Linux reports when the pty slave side goes
// away, which is the normal end of an attachment.
func isPTYClosed(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, syscall.EIO)
	}
	return errors.Is(err, syscall.EIO)
}
