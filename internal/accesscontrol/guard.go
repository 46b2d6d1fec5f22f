// ABOUTME: Caller-validation guard shared by AccessControl and dependent components
// ABOUTME: Dependents hold an Authority handle and call the guard per operation

package accesscontrol

import "github.com/2389/coven-acl/internal/identity"

// Authority is the read-only view of an AccessControl that dependent
// components consult before privileged operations.
type Authority interface {
	Admin() identity.Identity
	IsAdmin(id identity.Identity) bool
	IsAuthorized(id identity.Identity) bool
}

// RequireAdmin returns ErrNotAdmin unless caller is the current admin.
func RequireAdmin(a Authority, caller identity.Identity) error {
	if !a.IsAdmin(caller) {
		return ErrNotAdmin
	}
	return nil
}

// RequireAuthorized returns ErrNotAuthorized unless caller is the current
// admin or a member of the authorized set.
func RequireAuthorized(a Authority, caller identity.Identity) error {
	if a.IsAdmin(caller) || a.IsAuthorized(caller) {
		return nil
	}
	return ErrNotAuthorized
}
