package session

import "sync"

// Origin registration. An origin is the symbolic name of the caller that
// created a session ("cli", "compile", ...). Each origin may bind an Action
// record customizing attach/view/run/status behavior; the record is resolved
// once at session creation and again when sessions are loaded from the
// registry, never looked up dynamically per call.

var (
	originMu sync.RWMutex
	origins  = map[string]Action{}
)

// RegisterOrigin binds an action record to an origin name. Re-registering
// replaces the previous record.
func RegisterOrigin(name string, action Action) {
	originMu.Lock()
	defer originMu.Unlock()
	origins[name] = action
}

// ActionFor returns the action record bound to an origin. Unregistered
// origins yield a zero record, which selects default behaviors everywhere.
func ActionFor(origin string) Action {
	originMu.RLock()
	defer originMu.RUnlock()
	return origins[origin]
}
