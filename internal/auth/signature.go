// ABOUTME: Signed-login verification for secp256k1 keys
// ABOUTME: Clients sign "timestamp|nonce"; the recovered identity becomes the session subject

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-acl/internal/identity"
)

const (
	// DefaultSignatureMaxAge is how old a login signature may be.
	DefaultSignatureMaxAge = 5 * time.Minute

	// NonceCacheSize is the maximum number of live nonces. Logins beyond
	// NonceCacheSize per (max age + clock skew) are refused until nonces expire.
	NonceCacheSize = 100000

	// maxClockSkew is how far in the future a timestamp may be.
	maxClockSkew = time.Minute
)

// Login errors
var (
	ErrSignatureExpired = errors.New("signature expired")
	ErrFutureTimestamp  = errors.New("timestamp is in the future")
	ErrMissingNonce     = errors.New("missing nonce")
	ErrNonceReused      = errors.New("nonce already used")
	ErrNonceCacheFull   = errors.New("too many recent logins, retry later")
)

// LoginRequest is what a client sends to prove it holds a key.
type LoginRequest struct {
	PublicKey string `json:"public_key"` // hex, compressed or uncompressed
	Signature string `json:"signature"`  // base64 DER over keccak256("timestamp|nonce")
	Timestamp int64  `json:"timestamp"`  // unix seconds
	Nonce     string `json:"nonce"`
}

// LoginMessage builds the bytes a login signature covers.
func LoginMessage(timestamp int64, nonce string) []byte {
	return fmt.Appendf(nil, "%d|%s", timestamp, nonce)
}

// SignLogin builds a fresh login request signed by key.
func SignLogin(key *identity.Key, now time.Time) *LoginRequest {
	ts := now.Unix()
	nonce := uuid.New().String()
	return &LoginRequest{
		PublicKey: key.PublicKeyHex(),
		Signature: key.Sign(LoginMessage(ts, nonce)),
		Timestamp: ts,
		Nonce:     nonce,
	}
}

// SignatureVerifier checks login signatures with replay protection.
type SignatureVerifier struct {
	maxAge time.Duration
	nonces *NonceCache
	now    func() time.Time
}

// NewSignatureVerifier creates a verifier accepting signatures up to maxAge old.
func NewSignatureVerifier(maxAge time.Duration) *SignatureVerifier {
	if maxAge <= 0 {
		maxAge = DefaultSignatureMaxAge
	}
	return &SignatureVerifier{
		maxAge: maxAge,
		// nonces must outlive the window in which their timestamp is accepted
		nonces: NewNonceCache(maxAge+maxClockSkew, NonceCacheSize),
		now:    time.Now,
	}
}

// Close releases resources used by the verifier.
func (v *SignatureVerifier) Close() {
	v.nonces.Close()
}

// Verify checks freshness and signature, spends the nonce and returns the
// signer's identity.
func (v *SignatureVerifier) Verify(req *LoginRequest) (identity.Identity, error) {
	nonce := strings.TrimSpace(req.Nonce)
	if nonce == "" {
		return identity.Null, ErrMissingNonce
	}

	age := v.now().Sub(time.Unix(req.Timestamp, 0))
	if age < -maxClockSkew {
		return identity.Null, ErrFutureTimestamp
	}
	if age > v.maxAge {
		return identity.Null, fmt.Errorf("%w (age: %v, max: %v)", ErrSignatureExpired, age.Truncate(time.Second), v.maxAge)
	}

	signer, err := identity.VerifySignature(req.PublicKey, LoginMessage(req.Timestamp, nonce), strings.TrimSpace(req.Signature))
	if err != nil {
		return identity.Null, fmt.Errorf("signature verification failed: %w", err)
	}

	// keyed by signer so one client's nonces cannot block another's
	if err := v.nonces.Spend(fmt.Sprintf("%s:%d:%s", signer.Hex(), req.Timestamp, nonce)); err != nil {
		return identity.Null, err
	}
	return signer, nil
}
