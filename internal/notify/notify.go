// Package notify delivers session completion notifications.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/detached-sh/detached/internal/logging"
	"github.com/detached-sh/detached/internal/session"
)

var notifLog = logging.ForComponent(logging.CompNotif)

// Completion returns a session.Notifier that raises a desktop notification
// when a session turns inactive. Disabled or failing delivery degrades to a
// log line; the transition itself never depends on delivery.
func Completion(enabled bool) session.Notifier {
	return func(s *session.Session) {
		title, body := render(s)
		notifLog.Info("session_completed",
			slog.String("id", s.ID),
			slog.String("outcome", string(s.Status.Outcome)),
		)
		if !enabled {
			return
		}
		if err := beeep.Notify(title, body, ""); err != nil {
			notifLog.Debug("desktop_notify_failed", slog.String("error", err.Error()))
		}
	}
}

func render(s *session.Session) (title, body string) {
	switch s.Status.Outcome {
	case session.OutcomeSuccess:
		title = "Session finished"
	case session.OutcomeFailure:
		title = fmt.Sprintf("Session failed (exit %d)", s.Status.Code)
	default:
		title = "Session ended"
	}
	return title, session.Label(s, 60)
}
