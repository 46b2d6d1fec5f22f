package accesscontrol

import "errors"

var (
	// ErrNotAdmin is returned when the caller of a mutating operation is not
	// the current admin.
	ErrNotAdmin = errors.New("not admin")

	// ErrInvalidAddress is returned when the null identity is given where a
	// real account is required.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotAuthorized is returned by RequireAuthorized when the caller is
	// neither admin nor in the authorized set.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrCorruptLog is returned by Replay when a stored log could not have
	// been produced by a sequence of successful calls.
	ErrCorruptLog = errors.New("corrupt event log")
)
