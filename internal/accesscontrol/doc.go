// Package accesscontrol implements a single-admin access control primitive.
//
// # State
//
// An AccessControl owns two independent pieces of state:
//
//   - admin: exactly one identity, never Null after construction. It changes
//     only through SetAdmin, and only the current admin may call it.
//   - authorized: a per-identity boolean, false unless set. It changes only
//     through Authorize and Deauthorize, which only the current admin may
//     call. Entries survive admin transfer.
//
// Authorized identities have no power over the AccessControl itself. They
// exist so that dependent components (the token) can gate their own
// operations through RequireAuthorized.
//
// # Notifications
//
// Every successful mutating call appends one Event to the instance log and
// returns it. The deployer's bootstrap is logged as AdminChanged(Null,
// deployer). Authorize and Deauthorize log even when the status does not
// change. Rejected calls log nothing.
//
// # Errors
//
//   - ErrNotAdmin: the caller of SetAdmin, Authorize or Deauthorize is not the admin.
//   - ErrInvalidAddress: Null given as deployer, new admin or subject.
//
// The admin check runs first, so a non-admin always sees ErrNotAdmin.
//
// # Persistence
//
// The package keeps no storage of its own. Snapshot and Restore let a caller
// roll back a call whose persistence failed, and Replay rebuilds an instance
// from a stored log.
package accesscontrol
