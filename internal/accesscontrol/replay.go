// ABOUTME: Snapshot/restore for commit-or-abort and rebuilding state from a stored log
// ABOUTME: Replay re-runs every logged call through the guarded operations

package accesscontrol

import (
	"fmt"

	"github.com/2389/coven-acl/internal/identity"
)

// Snapshot is a point-in-time copy of an AccessControl's state.
type Snapshot struct {
	admin      identity.Identity
	authorized map[identity.Identity]bool
	logLen     int
}

// Snapshot captures the current state so a caller can undo a committed
// operation whose side effects (persistence) failed.
func (a *AccessControl) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	authorized := make(map[identity.Identity]bool, len(a.authorized))
	for id, ok := range a.authorized {
		authorized[id] = ok
	}
	return Snapshot{admin: a.admin, authorized: authorized, logLen: len(a.events)}
}

// Restore rolls the instance back to s. Events emitted after s are dropped.
func (a *AccessControl) Restore(s Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.admin = s.admin
	a.authorized = make(map[identity.Identity]bool, len(s.authorized))
	for id, ok := range s.authorized {
		a.authorized[id] = ok
	}
	if s.logLen < len(a.events) {
		a.events = a.events[:s.logLen]
	}
}

// Replay rebuilds an AccessControl from its notification log. Each entry is
// applied through the same guarded operation that produced it, so a log that
// contains a call the admin could not have made is rejected.
func Replay(events []Event) (*AccessControl, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: empty log", ErrCorruptLog)
	}

	first := events[0]
	if first.Kind != KindAdminChanged || !first.Previous.IsNull() || first.Seq != 1 {
		return nil, fmt.Errorf("%w: log does not start with bootstrap AdminChanged", ErrCorruptLog)
	}

	a, err := New(first.Current)
	if err != nil {
		return nil, fmt.Errorf("%w: bootstrap: %v", ErrCorruptLog, err)
	}
	if a.events[0] != first {
		return nil, fmt.Errorf("%w: bootstrap: replayed %s, stored %s", ErrCorruptLog, a.events[0], first)
	}

	for _, e := range events[1:] {
		got, err := a.apply(e)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrCorruptLog, e.Seq, err)
		}
		if got != e {
			return nil, fmt.Errorf("%w: event %d: replayed %s, stored %s", ErrCorruptLog, e.Seq, got, e)
		}
	}
	return a, nil
}

func (a *AccessControl) apply(e Event) (Event, error) {
	switch e.Kind {
	case KindAdminChanged:
		return a.SetAdmin(e.Caller, e.Current)
	case KindAuthorizationChanged:
		if e.Status {
			return a.Authorize(e.Caller, e.Subject)
		}
		return a.Deauthorize(e.Caller, e.Subject)
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
