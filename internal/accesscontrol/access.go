// ABOUTME: Single-admin access control state machine
// ABOUTME: Admin transfer plus a flat authorization set, every mutation guarded by caller == admin

package accesscontrol

import (
	"sync"

	"github.com/2389/coven-acl/internal/identity"
)

// AccessControl holds one admin identity and a set of authorized identities.
// Each call runs to completion under the instance lock; a rejected call
// changes nothing and emits nothing.
type AccessControl struct {
	mu         sync.RWMutex
	admin      identity.Identity
	authorized map[identity.Identity]bool
	events     []Event
}

// New constructs an AccessControl administered by deployer and emits the
// bootstrap AdminChanged(Null, deployer) notification.
func New(deployer identity.Identity) (*AccessControl, error) {
	if deployer.IsNull() {
		return nil, ErrInvalidAddress
	}

	a := &AccessControl{
		admin:      deployer,
		authorized: make(map[identity.Identity]bool),
	}
	a.emit(AdminChanged(deployer, identity.Null, deployer))
	return a, nil
}

// SetAdmin transfers admin to newAdmin. The authorized set is untouched.
func (a *AccessControl) SetAdmin(caller, newAdmin identity.Identity) (Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.admin {
		return Event{}, ErrNotAdmin
	}
	if newAdmin.IsNull() {
		return Event{}, ErrInvalidAddress
	}

	previous := a.admin
	a.admin = newAdmin
	return a.emit(AdminChanged(caller, previous, newAdmin)), nil
}

// Authorize adds id to the authorized set. Authorizing an already authorized
// identity succeeds and still emits a notification.
func (a *AccessControl) Authorize(caller, id identity.Identity) (Event, error) {
	return a.setAuthorized(caller, id, true)
}

// Deauthorize removes id from the authorized set. Like Authorize it always
// emits on success, even when id was not authorized.
func (a *AccessControl) Deauthorize(caller, id identity.Identity) (Event, error) {
	return a.setAuthorized(caller, id, false)
}

func (a *AccessControl) setAuthorized(caller, id identity.Identity, status bool) (Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.admin {
		return Event{}, ErrNotAdmin
	}
	if id.IsNull() {
		return Event{}, ErrInvalidAddress
	}

	if status {
		a.authorized[id] = true
	} else {
		// absent and false read the same
		delete(a.authorized, id)
	}
	return a.emit(AuthorizationChanged(caller, id, status)), nil
}

// Admin returns the current admin.
func (a *AccessControl) Admin() identity.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admin
}

// IsAdmin reports whether id is the current admin.
func (a *AccessControl) IsAdmin(id identity.Identity) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return id == a.admin
}

// IsAuthorized reports whether id is in the authorized set.
func (a *AccessControl) IsAuthorized(id identity.Identity) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authorized[id]
}

// Events returns a copy of the notification log in emission order.
func (a *AccessControl) Events() []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// emit appends e to the log. Must be called with mu held (or before a is shared).
func (a *AccessControl) emit(e Event) Event {
	e.Seq = uint64(len(a.events)) + 1
	a.events = append(a.events, e)
	return e
}

var _ Authority = (*AccessControl)(nil)
