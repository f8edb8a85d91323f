package dtach

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
)

// LineFilter decides whether a log line is shown. Used to strip the exit
// sentinel lines the env reporter appends.
type LineFilter func(line string) bool

// View streams a session log to w. With follow set it keeps the file open
// and delivers appended lines until the context ends or the file is removed.
// The read-only counterpart of attaching, and the only path available for
// non-attachable sessions.
func View(ctx context.Context, logPath string, w io.Writer, follow bool, skip LineFilter) error {
	t, err := tail.TailFile(logPath, tail.Config{
		Follow:    follow,
		ReOpen:    false,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", logPath, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("tail %s: %w", logPath, line.Err)
			}
			if skip != nil && skip(line.Text) {
				continue
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				_ = t.Stop()
				return err
			}
		}
	}
}
