// ABOUTME: Change notifications emitted by AccessControl
// ABOUTME: AdminChanged and AuthorizationChanged records in an append-only log

package accesscontrol

import (
	"fmt"

	"github.com/2389/coven-acl/internal/identity"
)

// EventKind identifies the type of a change notification.
type EventKind string

const (
	KindAdminChanged         EventKind = "admin_changed"
	KindAuthorizationChanged EventKind = "authorization_changed"
)

// Event is one entry in an AccessControl notification log.
//
// For KindAdminChanged, Previous and Current are set. For
// KindAuthorizationChanged, Subject and Status are set.
type Event struct {
	Seq    uint64            // 1-based position in the log
	Kind   EventKind
	Caller identity.Identity // who made the call; the deployer for the bootstrap event

	Previous identity.Identity
	Current  identity.Identity

	Subject identity.Identity
	Status  bool
}

// AdminChanged builds an admin transfer notification.
func AdminChanged(caller, previous, current identity.Identity) Event {
	return Event{Kind: KindAdminChanged, Caller: caller, Previous: previous, Current: current}
}

// AuthorizationChanged builds an authorization notification.
func AuthorizationChanged(caller, subject identity.Identity, status bool) Event {
	return Event{Kind: KindAuthorizationChanged, Caller: caller, Subject: subject, Status: status}
}

func (e Event) String() string {
	switch e.Kind {
	case KindAdminChanged:
		return fmt.Sprintf("#%d AdminChanged(%s, %s)", e.Seq, e.Previous, e.Current)
	case KindAuthorizationChanged:
		return fmt.Sprintf("#%d AuthorizationChanged(%s, %t)", e.Seq, e.Subject, e.Status)
	default:
		return fmt.Sprintf("#%d %s", e.Seq, e.Kind)
	}
}
