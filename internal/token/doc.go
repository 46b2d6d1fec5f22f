// Package token is a minimal fungible token that depends on an
// accesscontrol.Authority.
//
// The token holds an explicit handle to its authority and asks it, per call,
// whether the caller may mint (admin or authorized). Balances are owned by the
// token alone; the authority never sees them.
package token
