// Package auth authenticates callers of the gateway.
//
// # Login
//
// A client proves it holds a secp256k1 key by signing "timestamp|nonce"
// (keccak-256 digest, DER, base64). The gateway checks the timestamp is
// within signature_max_age (with one minute of future skew), spends the
// nonce, and derives the caller identity from the public key:
//
//	req := auth.SignLogin(key, time.Now())
//	caller, err := verifier.Verify(req)
//
// # Sessions
//
// A verified login is exchanged for an HS256 JWT whose "sub" claim is the
// caller identity. Middleware checks the bearer token on every API request
// and stores the caller in the request context:
//
//	caller, ok := auth.CallerFromContext(r.Context())
//
// The identity in the context is the only caller the access control layer
// ever sees; request bodies cannot name a different one.
package auth
