package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/detached-sh/detached/internal/logging"
)

var engineLog = logging.ForComponent(logging.CompEngine)

// Notifier receives a session after its transition to inactive completes.
// Delivery mechanics (desktop popup, editor message) are a collaborator
// concern; the engine only guarantees the transition happens-before the call.
type Notifier func(s *Session)

// Engine owns all session state transitions. Mutation is funneled through a
// single Run loop consuming discrete events; the synchronous methods exist
// for one-shot callers (CLI commands). A mutex serializes the two, so a
// watcher-driven transition and a caller-driven sweep observing the same
// socket deletion never race on one session.
type Engine struct {
	reg     *Registry
	watcher *Watcher
	notify  Notifier

	mu           sync.Mutex
	sweepLimiter *rate.Limiter
	ioTimeout    time.Duration

	sweepCh chan struct{}
}

// EngineOptions tunes engine behavior.
type EngineOptions struct {
	// SweepInterval throttles display-triggered sweeps (default 1s).
	SweepInterval time.Duration

	// IOTimeout bounds per-session stat calls during sweeps. Zero keeps the
	// unbounded reference behavior.
	IOTimeout time.Duration
}

// NewEngine wires the engine to a registry, an optional watcher and an
// optional notifier.
func NewEngine(reg *Registry, watcher *Watcher, notify Notifier, opts EngineOptions) *Engine {
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	e := &Engine{
		reg:          reg,
		watcher:      watcher,
		notify:       notify,
		sweepLimiter: rate.NewLimiter(rate.Every(interval), 1),
		ioTimeout:    opts.IOTimeout,
		sweepCh:      make(chan struct{}, 1),
	}
	reg.SetReloadHandler(e.RequestSweep)
	return e
}

// Run consumes watcher deletions and sweep requests until the context ends.
// Events are handled one at a time; no transition runs concurrently with
// another.
func (e *Engine) Run(ctx context.Context) {
	var deletions <-chan SocketDeletion
	if e.watcher != nil {
		deletions = e.watcher.Deletions()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deletions:
			if !ok {
				deletions = nil
				continue
			}
			e.handleSocketDeletion(d)
		case <-e.sweepCh:
			e.Sweep()
		}
	}
}

// RequestSweep schedules a reconciliation sweep on the Run loop. Safe from
// any goroutine; coalesces when one is already pending.
func (e *Engine) RequestSweep() {
	select {
	case e.sweepCh <- struct{}{}:
	default:
	}
}

// handleSocketDeletion resolves a watcher event to a session and transitions
// it. Unknown ids are ignored: socket files of sessions deleted from the
// registry can outlive their records.
func (e *Engine) handleSocketDeletion(d SocketDeletion) {
	s, err := e.reg.Get(d.ID)
	if err != nil {
		engineLog.Debug("socket_deletion_unknown_session", slog.String("id", d.ID))
		return
	}
	e.Transition(s, false)
	e.forgetIdleDir(d.Dir)
}

// Transition moves an active (or unknown) session to inactive: recompute
// size and timing, determine the outcome, persist, then notify. Invoking it
// on an already-inactive session is a no-op; the watcher and a concurrent
// sweep may both observe the same socket deletion, and the engine mutex
// makes the second caller see the terminal state.
func (e *Engine) Transition(s *Session, approximate bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitionLocked(s, approximate)
}

func (e *Engine) transitionLocked(s *Session, approximate bool) {
	if err := s.Validate(); err != nil {
		engineLog.Warn("transition_invalid_session", slog.String("error", err.Error()))
		return
	}
	if s.State == StateInactive {
		engineLog.Debug("transition_already_inactive", slog.String("id", s.ID))
		return
	}

	s.Size = s.LogSize()

	end := time.Now()
	if approximate {
		// Exact real-time observation was unavailable (reconciling after a
		// restart); the log's last write approximates completion.
		if info, err := os.Stat(s.LogFile()); err == nil {
			end = info.ModTime()
		}
	}
	s.Time.End = end
	s.Time.Duration = end.Sub(s.Time.Start).Seconds()
	if s.Time.Duration < 0 {
		s.Time.Duration = 0
	}

	if s.Action.Status != nil {
		s.Status.Outcome, s.Status.Code = s.Action.Status(s)
	} else {
		s.Status.Outcome, s.Status.Code = DefaultStatus(s.LogFile())
	}

	s.State = StateInactive
	if err := e.reg.Update(s, true); err != nil {
		engineLog.Warn("transition_persist_failed",
			slog.String("id", s.ID),
			slog.String("error", err.Error()),
		)
	}

	engineLog.Info("session_inactive",
		slog.String("id", s.ID),
		slog.String("outcome", string(s.Status.Outcome)),
		slog.Int("code", s.Status.Code),
		slog.Float64("duration", s.Time.Duration),
	)

	if e.notify != nil {
		e.notify(s)
	}
	if s.Action.Callback != nil {
		s.Action.Callback(s)
	}
}

// Sweep reconciles every known session against the filesystem. Run at
// startup and whenever sessions are fetched for display. One session's bad
// state never blocks processing of the others.
//
// An unknown session with a present log is promoted to active without
// re-checking the socket in the same pass; a session that already finished
// can therefore read as active for one cycle until the next sweep or watcher
// event demotes it. Deliberately kept: the follow-up pass converges.
func (e *Engine) Sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.reg.List() {
		e.sweepOne(s)
	}
	if err := e.reg.Flush(); err != nil {
		engineLog.Warn("sweep_flush_failed", slog.String("error", err.Error()))
	}
	e.gcWatches()
}

// SweepThrottled runs a sweep unless one ran within the configured interval.
// Display paths call this so rapid listings don't hammer network filesystems.
func (e *Engine) SweepThrottled() {
	if !e.sweepLimiter.Allow() {
		return
	}
	e.Sweep()
}

func (e *Engine) sweepOne(s *Session) {
	logExists := e.statExists(s.LogFile())

	switch s.State {
	case StateUnknown:
		if !logExists {
			// Consistency violation: the backing log vanished before the
			// session was ever confirmed. Silent cleanup, no notification.
			e.removeSilently(s, "unknown_session_log_missing")
			return
		}
		s.State = StateActive
		if err := e.reg.Update(s, false); err != nil {
			engineLog.Warn("sweep_promote_failed",
				slog.String("id", s.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if e.watcher != nil {
			if err := e.watcher.EnsureWatched(s.Directory); err != nil {
				engineLog.Warn("sweep_watch_failed",
					slog.String("dir", s.Directory),
					slog.String("error", err.Error()),
				)
			}
		}

	case StateActive:
		if !logExists {
			// Host session directory purged externally. Data loss, not a
			// normal completion: remove without notifying.
			e.removeSilently(s, "active_session_log_missing")
			return
		}
		if !e.statExists(s.SocketFile()) {
			e.transitionLocked(s, true)
			return
		}
		if e.watcher != nil {
			if err := e.watcher.EnsureWatched(s.Directory); err != nil {
				engineLog.Warn("sweep_watch_failed",
					slog.String("dir", s.Directory),
					slog.String("error", err.Error()),
				)
			}
		}

	case StateInactive:
		// Terminal; nothing to reconcile.
	}
}

func (e *Engine) removeSilently(s *Session, reason string) {
	engineLog.Info("session_removed",
		slog.String("id", s.ID),
		slog.String("reason", reason),
	)
	if err := e.reg.Remove(s); err != nil {
		engineLog.Warn("session_remove_failed",
			slog.String("id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}

// statExists checks file presence, optionally bounded by the configured IO
// timeout so a hung network filesystem can't stall the control thread.
func (e *Engine) statExists(path string) bool {
	if e.ioTimeout <= 0 {
		_, err := os.Stat(path)
		return err == nil
	}

	done := make(chan bool, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err == nil
	}()
	select {
	case ok := <-done:
		return ok
	case <-time.After(e.ioTimeout):
		engineLog.Warn("stat_timeout", slog.String("path", path))
		return false
	}
}

// gcWatches drops directory watches with no remaining active session,
// keeping the number of OS-level watches proportional to live sessions.
func (e *Engine) gcWatches() {
	if e.watcher == nil {
		return
	}
	activeDirs := make(map[string]bool)
	for _, s := range e.reg.List() {
		if s.State == StateActive {
			activeDirs[s.Directory] = true
		}
	}
	for _, dir := range e.watcher.WatchedDirs() {
		if !activeDirs[dir] {
			e.watcher.Forget(dir)
		}
	}
}

// forgetIdleDir removes the watch on dir when no active session remains in
// it.
func (e *Engine) forgetIdleDir(dir string) {
	if e.watcher == nil {
		return
	}
	for _, s := range e.reg.List() {
		if s.Directory == dir && s.State == StateActive {
			return
		}
	}
	e.watcher.Forget(dir)
}
